package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/Vasu1712/bookmate-backend/internal/client"
	"github.com/Vasu1712/bookmate-backend/internal/config"
	"github.com/Vasu1712/bookmate-backend/internal/models"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const help = "commands: /list, /open <userId>, /close, /delete <messageId>, /quit; anything else is sent"

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "client error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return exitConfig, err
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.NewAPI(cfg.ServerURL, cfg.Token)
	channel, err := client.Dial(ctx, cfg.ServerURL, cfg.UserID, cfg.Token, log)
	if err != nil {
		return exitRuntime, err
	}
	view := client.NewView(cfg.UserID, api, channel, log)
	defer view.Close()

	view.OnChange(func() { render(view, cfg.UserID) })
	view.OnError(func(message string) { color.Red.Printf("! %s\n", message) })
	go func() {
		if err := channel.Listen(view.HandleFrame); err != nil {
			color.Red.Printf("! channel closed: %v\n", err)
			stop()
		}
	}()

	fmt.Println(help)
	if err := listConversations(ctx, api); err != nil {
		color.Red.Printf("! %v\n", err)
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return exitOK, nil
		case line, ok := <-lines:
			if !ok {
				return exitOK, nil
			}
			if quit := handleLine(ctx, api, view, strings.TrimSpace(line)); quit {
				return exitOK, nil
			}
		}
	}
}

func handleLine(ctx context.Context, api *client.API, view *client.View, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	var err error
	switch cmd {
	case "":
		return false
	case "/quit":
		return true
	case "/list":
		err = listConversations(ctx, api)
	case "/open":
		if arg == "" {
			err = fmt.Errorf("usage: /open <userId>")
			break
		}
		go func() {
			if err := view.Select(ctx, arg); err != nil {
				color.Red.Printf("! %v\n", err)
			}
		}()
	case "/close":
		view.Deselect()
	case "/delete":
		if arg == "" {
			err = fmt.Errorf("usage: /delete <messageId>")
			break
		}
		err = api.Delete(ctx, arg)
	default:
		if strings.HasPrefix(cmd, "/") {
			err = fmt.Errorf("unknown command %s; %s", cmd, help)
			break
		}
		err = view.Send(line)
	}
	if err != nil {
		color.Red.Printf("! %v\n", err)
	}
	return false
}

func listConversations(ctx context.Context, api *client.API) error {
	convs, err := api.Conversations(ctx)
	if err != nil {
		return err
	}
	if len(convs) == 0 {
		fmt.Println("no conversations yet")
		return nil
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"User ID", "Name"})
	table.SetAutoFormatHeaders(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	for _, c := range convs {
		table.Append([]string{c.ID, c.UserName})
	}
	table.Render()
	return nil
}

func render(view *client.View, self string) {
	switch view.State() {
	case client.Unselected:
		color.Gray.Println("-- no conversation open --")
		return
	case client.Loading:
		color.Gray.Printf("-- loading conversation with %s --\n", view.Counterpart())
		return
	}
	color.Bold.Printf("== %s ==\n", view.Counterpart())
	for _, day := range view.Groups(time.Local) {
		color.Cyan.Printf("  %s\n", day.Key)
		for _, m := range day.Items {
			printMessage(m, self)
		}
	}
}

func printMessage(m models.Message, self string) {
	name := m.Sender.UserName
	if name == "" {
		name = m.Sender.ID
	}
	line := fmt.Sprintf("    %s %s: %s  (%s)", m.CreatedAt.Local().Format("15:04"), name, m.Text, m.ID)
	if m.Sender.ID == self {
		color.Green.Println(line)
		return
	}
	fmt.Println(line)
}
