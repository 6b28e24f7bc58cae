package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/prompter/pkg/cli/config"
)

func cmdChat() *cli.Command {
	var activeSkill string
	var geminiCfg config.Gemini
	var memoryCfg config.Memory
	var skillsCfg config.Skills
	var chatCfg config.Chat

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "skill",
			Usage:       "Initially active skill",
			Sources:     cli.EnvVars("PROMPTER_SKILL"),
			Destination: &activeSkill,
		},
	}
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, memoryCfg.Flags()...)
	flags = append(flags, skillsCfg.Flags()...)
	flags = append(flags, chatCfg.Flags()...)

	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Interactive chat session on the terminal",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			chat, _, err := newChatUseCase(ctx, &geminiCfg, &memoryCfg, &skillsCfg, &chatCfg, activeSkill)
			if err != nil {
				return err
			}

			prompt := color.New(color.FgCyan, color.Bold)
			answer := color.New(color.FgGreen)
			note := color.New(color.FgYellow)

			note.Println("Commands: /skill <name>, /clear, /quit")

			scanner := bufio.NewScanner(os.Stdin)
			scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

			for {
				if ctx.Err() != nil {
					return nil
				}

				prompt.Printf("%s> ", chat.ActiveSkill())
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())

				switch {
				case line == "":
					continue
				case line == "/quit" || line == "/exit":
					return nil
				case line == "/clear":
					if err := chat.Clear(ctx); err != nil {
						return err
					}
					note.Println("conversation cleared")
					continue
				case strings.HasPrefix(line, "/skill "):
					sk := chat.SetActiveSkill(strings.TrimPrefix(line, "/skill "))
					note.Printf("active skill: %s\n", sk)
					continue
				}

				resp, err := chat.HandleMessage(ctx, line, "")
				if err != nil {
					note.Printf("error: %v\n", err)
					continue
				}
				if resp.UsedFallback {
					note.Println("(backend unreachable, local answer)")
				}
				answer.Println(resp.Text)
				fmt.Println()
			}

			if err := scanner.Err(); err != nil {
				return goerr.Wrap(err, "failed to read input")
			}
			return nil
		},
	}
}
