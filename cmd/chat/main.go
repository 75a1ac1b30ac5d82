package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/inktime/support-backend/internal/app"
)

// Interactive REPL against the full answer path, for manual testing of a
// knowledge base without the HTTP surface.
func main() {
	session := flag.String("session", "", "session id (random when empty)")
	flag.Parse()

	application, err := app.New()
	if err != nil {
		fmt.Printf("Failed to start: %v\n", err)
		os.Exit(1)
	}
	defer application.Close()

	sessionID := *session
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	fmt.Printf("session %s — type a question, 'clear' to wipe memory, 'quit' to exit\n", sessionID)

	scanner := bufio.NewScanner(os.Stdin)
	ctx := context.Background()
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case line == "quit" || line == "exit":
			return
		case line == "clear":
			if err := application.Chat.ClearSession(ctx, sessionID); err != nil {
				fmt.Printf("error: %v\n", err)
				continue
			}
			fmt.Println("session memory cleared")
			continue
		}

		reply, err := application.Chat.Respond(ctx, sessionID, line)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		if reply.Model != "" {
			fmt.Printf("[%s] %s\n", reply.Model, reply.Content)
		} else {
			fmt.Println(reply.Content)
		}
	}
}
