package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Load 加载配置
// 1. 加载 .env.{env}（敏感信息，dev/test 专用）
// 2. 根据 APP_ENV 加载 {env}.yaml
// 3. 构建最终配置
func Load() *Config {
	// 先解析环境（shell 环境变量优先于 .env 文件）
	env := parseEnv(getEnv("APP_ENV", "dev"))

	// 加载 .env 文件（敏感信息）
	loadEnvFiles(env)

	// 加载 YAML 配置
	yamlCfg := loadYAMLConfig(env)

	// 从环境变量获取敏感信息
	yamlCfg.Database.Password = firstEnv("DB_PASSWORD", "POSTGRES_PASSWORD")
	yamlCfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	yamlCfg.MinIO.AccessKey = firstEnv("MINIO_ROOT_USER", "MINIO_ACCESS_KEY")
	yamlCfg.MinIO.SecretKey = firstEnv("MINIO_ROOT_PASSWORD", "MINIO_SECRET_KEY")

	// DATABASE_URL 直连（Docker Compose / CI 场景）优先于 YAML 构建
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = buildDatabaseURL(yamlCfg.Database, yamlCfg.Database.Password)
	}

	cfg := &Config{
		Env:            env,
		DatabaseDriver: detectDatabaseDriver(yamlCfg.Database.Driver, databaseURL),
		DatabaseURL:    databaseURL,
		RedisURL:       buildRedisURL(yamlCfg.Redis),
		APIPort:        yamlCfg.APIServer.Port,
		Engine:         yamlCfg.Engine,
		MinIO:          yamlCfg.MinIO,
		APIServer:      yamlCfg.APIServer,
		ConfigFilePath: yamlCfg.loadedFrom,
	}

	// 验证并填充控制器默认值
	cfg.Engine.validate()

	return cfg
}

// loadYAMLConfig 加载 YAML 配置文件
// 加载顺序：默认值 → common.yaml → {env}.yaml
func loadYAMLConfig(env Environment) *yamlConfigInternal {
	// 1. 初始化默认值
	cfg := &yamlConfigInternal{
		YAMLConfig: YAMLConfig{
			APIServer: APIServerConfig{Port: "8080"},
			Database:  DatabaseConfig{Driver: "sqlite", Host: "localhost", Port: 5432, User: "genome", Name: "genome_engine", SSLMode: "disable"},
			Redis:     RedisConfig{Host: "localhost", Port: 6379, DB: 0},
			MinIO:     MinIOConfig{Endpoint: "localhost:9000", Bucket: "genome-engine"},
			Engine:    EngineConfig{},
		},
	}
	cfg.Engine.validate()

	paths := effectiveConfigPaths()

	// 2. 加载 common.yaml（公共配置）
	for _, base := range paths {
		path := filepath.Join(base, "common.yaml")
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, &cfg.YAMLConfig)
			break
		}
	}

	// 3. 加载 {env}.yaml（环境特定配置，覆盖公共配置）
	filename := fmt.Sprintf("%s.yaml", env)
	for _, base := range paths {
		path := filepath.Join(base, filename)
		if data, err := os.ReadFile(path); err == nil {
			yaml.Unmarshal(data, &cfg.YAMLConfig)
			cfg.loadedFrom = path
			break
		}
	}

	return cfg
}
