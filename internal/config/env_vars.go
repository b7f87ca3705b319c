package config

import (
	"fmt"
	"strings"
)

type EnvVars struct {
	Port      string `env:"PORT" envDefault:"8080"`
	AppName   string `env:"APP_NAME" envDefault:"Front Door Relay"`
	Env       string `env:"ENV" envDefault:"DEV"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	StaticDir string `env:"STATIC_DIR" envDefault:"./public"`
}

var _ EnvConfig = EnvVars{}

func (e EnvVars) GetPort() string {
	port := e.Port
	if port != "" && !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (e EnvVars) GetAppName() string {
	return e.AppName
}

func (e EnvVars) GetEnv() string {
	if e.Env == "" {
		return "DEV"
	}
	return strings.ToUpper(e.Env)
}

func (e EnvVars) GetLogLevel() string {
	return e.LogLevel
}

// GetStaticDir is the folder holding the embedded client application.
func (e EnvVars) GetStaticDir() string {
	return e.StaticDir
}
