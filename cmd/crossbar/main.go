// Command crossbar copies tables between databases, warehouses, object
// stores and local CSV files.
//
//	crossbar cp --if-exists=overwrite --schema=users.json \
//	    postgres://localhost/app#public.users bigquery:proj:sales.users \
//	    --temporary=gs://bucket/tmp/
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	_ "github.com/ajitpratap0/crossbar/pkg/connector/all"
)

var version = "0.1.0"

func main() {
	// A missing .env is not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// execute runs the command line and returns the process exit code
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(viper.New())
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	a.shutdown(ctx)
	if err != nil {
		renderError(stderr, err)
		return exitCode(err)
	}
	return 0
}
