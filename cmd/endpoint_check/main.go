package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"servechat/internal/app"
	"servechat/internal/config"
)

const (
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorCyan  = "\033[36m"
	colorReset = "\033[0m"
)

// endpoint_check prueba cada endpoint del catalogo y lo cruza con los READY del workspace.
func main() {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	a, err := app.New(ctx, cfg, zap.NewNop())
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	report := runChecks(ctx, a.Chat)
	printReport(os.Stdout, report)
	if !report.OK() {
		a.Close()
		os.Exit(1)
	}
}

func printReport(w io.Writer, report checkReport) {
	if report.ReadyErr != nil {
		fmt.Fprintf(w, "%s[ready]%s no se pudo listar endpoints READY: %v\n", colorCyan, colorReset, report.ReadyErr)
	}
	for _, r := range report.Results {
		color, status := colorGreen, "OK"
		if !r.OK {
			color, status = colorRed, "FALLO"
		}
		ready := ""
		if report.ReadyErr == nil && !r.Ready {
			ready = " (no READY)"
		}
		fmt.Fprintf(w, "%s[%s]%s %s%s: %s\n", color, status, colorReset, r.Endpoint, ready, r.Message)
	}
	if len(report.Results) == 0 {
		fmt.Fprintf(w, "%s[warn]%s no hay endpoints configurados (SERVING_ENDPOINT / SERVING_ENDPOINTS_CSV / MODEL_CATALOG_FILE)\n", colorRed, colorReset)
	}
	fmt.Fprintln(w, "==== Resumen ====")
	fmt.Fprintf(w, "Endpoints: %d | OK: %d | Fallidos: %d\n", len(report.Results), report.Passed, report.Failed)
}
