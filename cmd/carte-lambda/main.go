package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/jacentio/carte/apigw"
	"github.com/jacentio/carte/internal/bootstrap"
	"github.com/jacentio/carte/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "carte-lambda:", err)
		os.Exit(1)
	}

	// Built once per container and reused across invocations.
	app, err := bootstrap.New(context.Background(), cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "carte-lambda:", err)
		os.Exit(1)
	}
	defer app.Close()

	lambda.Start(apigw.NewHandler(app.Handler, app.Logger).HandleRequest)
}
