package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"strings"

	"github.com/golang/glog"
	"github.com/joho/godotenv"

	"github.com/tandemdocs/tandem/session"
)

type Config struct {
	Port           string
	DbFile         string
	AllowedOrigins []string
}

func NewConfig() *Config {
	// a .env file is optional; the process environment wins either way
	godotenv.Load()
	return &Config{
		Port:   envOr("PORT", "8000"),
		DbFile: envOr("DB_FILE", "documents.json"),
		AllowedOrigins: strings.Split(envOr(
			"ALLOWED_ORIGINS",
			"http://localhost:3000,http://localhost:5173,http://localhost:5174",
		), ","),
	}
}

func envOr(name string, defaultValue string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	config := NewConfig()
	documents := session.NewDocumentStore(config.DbFile)
	coordinator := session.NewChannelCoordinatorWithDefaults(context.Background(), documents)
	defer coordinator.Close()

	s := newServer(config, documents, coordinator)

	glog.Infof("tandemd listening on :%s\n", config.Port)
	if err := http.ListenAndServe(":"+config.Port, s.routes()); err != nil {
		glog.Errorf("listen error = %s\n", err)
		os.Exit(1)
	}
}
