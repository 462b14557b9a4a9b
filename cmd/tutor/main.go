// Package main is the entry point for the tutoring service.
package main

import (
	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/tutor-x/cmd/tutor/app"
)

func main() {
	// .env 仅用于本地开发，不存在时忽略
	_ = godotenv.Load()
	app.NewApp().Run()
}
