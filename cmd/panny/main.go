package main

import (
	"time"

	"github.com/spf13/cobra"

	"panny/account"
	"panny/chat"
	"panny/internal/api"
	"panny/internal/authsession"
	"panny/internal/cache"
	"panny/internal/configuration"
	"panny/internal/logging"
)

const configFilepath = "~/.panny/config.json"

var rootCmd = &cobra.Command{
	Use:     "panny",
	Short:   "A companion you can talk to, online or offline",
	Version: "1.0",
}

func main() {
	config, err := configuration.Parse(configFilepath)
	if err != nil {
		panic(err)
	}

	log := logging.New(config.LogFile)
	defer log.Sync()

	store, err := cache.New(config.ChatDatabasePath())
	if err != nil {
		panic(err)
	}
	defer store.Close()

	records, err := authsession.OpenRecordStore(config.SessionDatabasePath())
	if err != nil {
		panic(err)
	}
	defer records.Close()

	client := api.New(config.APIHost, config.AuthHost(), time.Duration(config.RequestTimeout)*time.Second)
	manager := authsession.NewManager(client, records, log)
	client.SetTokenSource(manager.Token)

	rootCmd.AddCommand(chat.NewCmd(store, client, manager, log))
	rootCmd.AddCommand(chat.NewListConversationsCmd(store))
	rootCmd.AddCommand(chat.NewResetCmd(store))
	rootCmd.AddCommand(account.NewLoginCmd(manager))
	rootCmd.AddCommand(account.NewSignupCmd(manager))
	rootCmd.AddCommand(account.NewLogoutCmd(manager))
	rootCmd.AddCommand(account.NewWhoamiCmd(manager))
	rootCmd.Execute()
}
