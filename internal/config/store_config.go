package config

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type StoreConfig interface {
	GetSessionStore() string
	GetSessionCapacity() int
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisKeyPrefix() string
}

type Store struct {
	Backend        string `env:"SESSION_STORE" envDefault:"memory"`
	Capacity       int    `env:"SESSION_CAPACITY" envDefault:"10000"`
	RedisAddr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword  string `env:"REDIS_PASSWORD"`
	RedisDB        int    `env:"REDIS_DB" envDefault:"0"`
	RedisKeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"frontdoor:session:"`
}

var _ StoreConfig = Store{}

func (s Store) GetSessionStore() string {
	if s.Backend == "" {
		return StoreMemory
	}
	return s.Backend
}

func (s Store) GetSessionCapacity() int {
	return s.Capacity
}

func (s Store) GetRedisAddr() string {
	return s.RedisAddr
}

func (s Store) GetRedisPassword() string {
	return s.RedisPassword
}

func (s Store) GetRedisDB() int {
	return s.RedisDB
}

func (s Store) GetRedisKeyPrefix() string {
	return s.RedisKeyPrefix
}
