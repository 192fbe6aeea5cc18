package main

import (
	"strings"

	"craftcrm/internal/config"
	"craftcrm/internal/database"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// 独立迁移入口：CI/部署阶段先跑迁移再起服务
func main() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/craftcrm")
	viper.SetEnvPrefix("CRAFTCRM")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		logrus.Warnf("No config file found: %v", err)
	}

	cfg := config.Load()
	db, err := database.Open(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		logrus.Fatalf("Migration failed: %v", err)
	}
	logrus.Info("Migration completed")
}
