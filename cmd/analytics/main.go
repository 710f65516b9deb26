package main

import (
	"os"

	"github.com/joho/godotenv"

	"ecommerce-analytics/internal/cli"
	"ecommerce-analytics/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
	os.Exit(int(cli.Run()))
}
