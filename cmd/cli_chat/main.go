package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/peterh/liner"
	"go.uber.org/zap"

	"servechat/internal/app"
	"servechat/internal/config"
	"servechat/internal/service"
)

func main() {
	ctx := context.Background()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close()

	id := a.ResolveIdentity(http.Header{})
	state := service.NewChatState(id.UserID, a.Chat.Catalog().Default())
	cli := &chatCLI{
		chat:          a.Chat,
		conversations: a.Conversations,
		analytics:     a.Analytics,
		id:            id,
		state:         state,
		out:           os.Stdout,
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	historyFile := filepath.Join(os.TempDir(), "servechat_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = line.WriteHistory(f)
			f.Close()
		}
		line.Close()
	}()

	fmt.Printf("Usuario: %s | Endpoint: %s | Persistencia: %v\n", id.UserID, state.Endpoint, a.Conversations.Enabled())
	fmt.Println("Escribe /help para ver los comandos, /quit para salir.")

	for {
		input, err := line.Prompt("Tu > ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
			}
			return
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			keepGoing, err := cli.handleCommand(ctx, input)
			if err != nil {
				fmt.Printf("error: %v\n", err)
			}
			if !keepGoing {
				return
			}
			continue
		}

		if err := cli.send(ctx, input); err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}
