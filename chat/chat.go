package chat

import (
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"panny/internal/api"
	"panny/internal/authsession"
	"panny/internal/cache"
	"panny/internal/cli"
	"panny/internal/engine"
	"panny/internal/insight"
	"panny/internal/nav"
)

// NewCmd instantiates and returns the chat command.
func NewCmd(store *cache.Store, client *api.Client, manager *authsession.Manager, log *zap.Logger) *cobra.Command {
	var opts struct {
		ConversationID string
	}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Back and forth chat with Panny",
		Long:  "Back and forth chat with Panny",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()

			// Settle the auth state before any history load.
			manager.SweepInactivity(ctx)
			state := manager.Resolve(ctx)

			// The navigation surface: a single query parameter carries the
			// active conversation id.
			location := nav.Location{Path: "/chat", Query: url.Values{}}
			if opts.ConversationID != "" {
				location.Query.Set(nav.QueryParam, opts.ConversationID)
			}
			resolver := nav.NewResolver(nav.NewHistory(location))

			insights := insight.New(client, log)
			eng := engine.New(store, client, manager, insights, resolver, cli.Notifier{}, log)
			eng.Reconcile(ctx)

			cli.Title("PANNY CHAT [%s](%s)", state, resolver.ActiveID())
			printHistory(eng.Messages())

			for {
				text, err := cli.PromptUser()
				cobra.CheckErr(err)
				manager.TouchActivity()

				switch strings.TrimSpace(text) {
				case "":
					continue
				case "/quit", "/exit":
					return
				case "/new":
					id := eng.StartNewConversation(ctx)
					cli.Title("PANNY CHAT [%s](%s)", state, id)
					continue
				case "/older":
					before := len(eng.Messages())
					eng.LoadOlder(ctx)
					messages := eng.Messages()
					printHistory(messages[:len(messages)-before])
					continue
				case "/insight":
					if insights.Computing() {
						cli.UserCommand("computing...\n")
						continue
					}
					cli.Insight(insights.Insight() + "\n")
					continue
				}

				eng.SendTurn(ctx, text)
				messages := eng.Messages()
				if len(messages) > 0 {
					last := messages[len(messages)-1]
					if last.Role == api.RoleAssistant {
						cli.AIOutput("PANNY: " + last.Text + "\n")
					}
				}
			}
		},
	}
	cmd.Flags().StringVarP(&opts.ConversationID, "conversation", "c", "", "resume a specific conversation id")
	return cmd
}

func printHistory(messages []*api.Message) {
	for _, message := range messages {
		if message.Role == api.RoleUser {
			cli.UserInput("> %s\n", message.Text)
		}
		if message.Role == api.RoleAssistant {
			cli.AIOutput(message.Text + "\n")
		}
	}
}
