package main

import (
	"bufio"
	"context"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/app"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/format"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/policy"
	"github.com/fernandofuc/tistis-platform-sub010/internal/adminchannel/session"
)

var chatOpts struct {
	tenant   string
	user     string
	business string
	vertical string
	channel  string
	timezone string
	readOnly bool
	keepDB   bool
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the admin channel from the terminal",
	Long: `chat runs turns locally against a throwaway SQLite database seeded with
demo data and an in-memory conversation store. Without a classifier API key
the offline keyword classifier is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if logLevel == "" {
			cfg.Log.Level = "warn"
		}
		setupLogger(cfg.Log.Level, "text")

		dir, err := os.MkdirTemp("", "adminchannel-chat-")
		if err != nil {
			return err
		}
		if !chatOpts.keepDB {
			defer os.RemoveAll(dir)
		}
		cfg.Store.Path = filepath.Join(dir, "chat.db")
		cfg.Store.Business = "sqlite"
		cfg.Conversation.Driver = "memory"
		cfg.Matrix.Room = ""

		ctx := cmd.Context()
		a, err := app.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.Store().SeedDemo(ctx, chatOpts.tenant, chatOpts.vertical); err != nil {
			return fmt.Errorf("seed demo data: %w", err)
		}
		if chatOpts.keepDB {
			fmt.Fprintf(cmd.ErrOrStderr(), "database: %s\n", cfg.Store.Path)
		}
		return chatLoop(ctx, a.Service(), cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	f := chatCmd.Flags()
	f.StringVar(&chatOpts.tenant, "tenant", "demo", "tenant id")
	f.StringVar(&chatOpts.user, "user", "owner", "operator user id")
	f.StringVar(&chatOpts.business, "business", "Clínica Sonrisa", "business name")
	f.StringVar(&chatOpts.vertical, "vertical", "dental", "business vertical (dental, restaurant, salon, ...)")
	f.StringVar(&chatOpts.channel, "channel", "telegram", "channel to format for (telegram, whatsapp)")
	f.StringVar(&chatOpts.timezone, "timezone", "America/Mexico_City", "operator IANA timezone")
	f.BoolVar(&chatOpts.readOnly, "read-only", false, "operate without the configure capability")
	f.BoolVar(&chatOpts.keepDB, "keep-db", false, "keep the demo database after exiting")
	rootCmd.AddCommand(chatCmd)
}

func chatLoop(ctx context.Context, svc *app.Service, in io.Reader, out io.Writer) error {
	caller := session.Caller{
		TenantID:     chatOpts.tenant,
		UserID:       chatOpts.user,
		DisplayName:  chatOpts.user,
		BusinessName: chatOpts.business,
		Vertical:     chatOpts.vertical,
		Channel:      format.Channel(chatOpts.channel),
		Timezone:     chatOpts.timezone,
		Locale:       "es-MX",
		Capabilities: policy.Capabilities{
			CanViewAnalytics:        true,
			CanConfigure:            !chatOpts.readOnly,
			CanReceiveNotifications: true,
		},
	}
	convID := uuid.NewString()

	fmt.Fprintln(out, "Escribe un mensaje (/ayuda para ver comandos, Ctrl+D para salir).")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		resp, err := svc.HandleTurn(ctx, app.TurnRequest{
			ConversationID: convID,
			Caller:         caller,
			Message:        session.InboundMessage{Text: text},
		})
		if resp.Text != "" {
			printReply(out, resp)
		}
		if err != nil {
			fmt.Fprintf(out, "(error: %v)\n", err)
		}
	}
}

var tagPattern = regexp.MustCompile(`</?[a-z]+>`)

func printReply(out io.Writer, resp app.TurnResponse) {
	text := resp.Text
	if resp.ParseMode == format.ParseHTML {
		text = html.UnescapeString(tagPattern.ReplaceAllString(text, ""))
	}
	fmt.Fprintln(out, text)
	for _, row := range resp.Keyboard {
		var labels []string
		for _, b := range row {
			labels = append(labels, fmt.Sprintf("[%s → %s]", b.Text, b.Data))
		}
		fmt.Fprintln(out, "  "+strings.Join(labels, " "))
	}
	fmt.Fprintf(out, "  (%s via %s, handler %s)\n", resp.Intent, resp.ResolvedBy, resp.Handler)
}
