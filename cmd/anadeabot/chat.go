package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the bot from the terminal",
	Long: `Starts an interactive conversation on stdin.

Commands:
  /state   print the current design
  /stop    say goodbye and forget the conversation
  /quit    leave without forgetting`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().String("id", "terminal", "Conversation id")
}

func runChat(cmd *cobra.Command, _ []string) error {
	s, logger, err := loadSettings(cmd)
	if err != nil {
		return err
	}
	id, _ := cmd.Flags().GetString("id")
	ctx := cmd.Context()

	a, err := newApp(ctx, s, logger, false)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	_, turn, err := a.bot.Conversation(ctx, id)
	if err != nil {
		return err
	}
	if turn == 0 {
		reply, _ := a.bot.Start(ctx, id)
		fmt.Fprintln(out, "bot>", reply)
	}

	in := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "you> ")
		if !in.Scan() {
			fmt.Fprintln(out)
			return in.Err()
		}
		text := strings.TrimSpace(in.Text())

		switch text {
		case "":
			continue
		case "/quit":
			return nil
		case "/stop":
			reply, _ := a.bot.Stop(ctx, id)
			fmt.Fprintln(out, "bot>", reply)
			return nil
		case "/state":
			state, turn, err := a.bot.Conversation(ctx, id)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "turn %d, confirmed %t\n%s\n", turn, state.Confirmed, state.Design.Format())
			continue
		}

		reply, _ := a.bot.Message(ctx, id, text)
		fmt.Fprintln(out, "bot>", reply)
	}
}
