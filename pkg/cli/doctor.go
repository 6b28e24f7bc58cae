package cli

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/prompter/pkg/cli/config"
)

func cmdDoctor() *cli.Command {
	var geminiCfg config.Gemini
	var memoryCfg config.Memory
	var skillsCfg config.Skills
	var chatCfg config.Chat

	var flags []cli.Flag
	flags = append(flags, geminiCfg.Flags()...)
	flags = append(flags, memoryCfg.Flags()...)
	flags = append(flags, skillsCfg.Flags()...)
	flags = append(flags, chatCfg.Flags()...)

	return &cli.Command{
		Name:  "doctor",
		Usage: "Check configuration and backend connectivity",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ok := color.New(color.FgGreen).SprintFunc()
			fail := color.New(color.FgRed).SprintFunc()

			chat, eventLog, err := newChatUseCase(ctx, &geminiCfg, &memoryCfg, &skillsCfg, &chatCfg, "")
			if err != nil {
				fmt.Printf("configuration: %s (%v)\n", fail("NG"), err)
				return err
			}
			fmt.Printf("configuration: %s\n", ok("OK"))
			fmt.Printf("active skill: %s\n", chat.ActiveSkill())

			usage, err := eventLog.MemoryUsage(ctx)
			if err != nil {
				fmt.Printf("event store: %s (%v)\n", fail("NG"), err)
			} else {
				fmt.Printf("event store: %s (%d events, %d bytes)\n", ok("OK"), usage.EventCount, usage.ApproxBytes)
			}

			if err := chat.TestConnectivity(ctx); err != nil {
				fmt.Printf("backend: %s (%v)\n", fail("unreachable"), err)
				return nil
			}
			fmt.Printf("backend: %s\n", ok("reachable"))
			return nil
		},
	}
}
