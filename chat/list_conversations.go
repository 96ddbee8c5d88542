package chat

import (
	"github.com/spf13/cobra"

	"panny/internal/cache"
	"panny/internal/cli"
)

// NewListConversationsCmd lists the locally cached conversations.
func NewListConversationsCmd(store *cache.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "conversations",
		Short: "List cached conversations",
		Args:  cobra.ExactArgs(0),
		Run: func(cmd *cobra.Command, args []string) {
			ids, err := store.List()
			cobra.CheckErr(err)

			cli.Title("CACHED CONVERSATIONS (%d)", len(ids))
			for _, id := range ids {
				messages, _, err := store.Get(id)
				cobra.CheckErr(err)
				preview := ""
				if len(messages) > 0 {
					preview = messages[0].Text
					if len(preview) > 60 {
						preview = preview[:60] + "..."
					}
				}
				cli.UserCommand("%s  (%d messages)  %s\n", id, len(messages), preview)
			}

			total, err := store.TotalSessionTime()
			cobra.CheckErr(err)
			cli.UserInput("total time in session: %s\n", total)
		},
	}
}

// NewResetCmd clears a conversation's cached messages, folding the elapsed
// session time into the lifetime total first.
func NewResetCmd(store *cache.Store) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <conversation-id>",
		Short: "Clear a cached conversation",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			if !cli.QueryUser("Clear this conversation's cached messages?") {
				return
			}
			store.SetActive(args[0])
			cobra.CheckErr(store.ClearActive())
			cli.UserCommand("cleared %s\n", args[0])
		},
	}
}
