// Command redox-cli is a small demonstration client for package redis,
// exercising the one-shot, sync, pub/sub, and repeating-command surfaces
// against a real RESP server.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/hmartiro/redox/redis"
	"github.com/hmartiro/redox/redisx"
)

var addr string

func main() {
	root := &cobra.Command{
		Use:   "redox-cli",
		Short: "A small demonstration client for the redox async RESP library",
	}
	root.PersistentFlags().StringVar(&addr, "addr", "127.0.0.1:6379", "server address (host:port)")

	root.AddCommand(getCmd())
	root.AddCommand(setCmd())
	root.AddCommand(delCmd())
	root.AddCommand(subCmd())
	root.AddCommand(pubCmd())
	root.AddCommand(loopCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dial() *redis.Engine {
	eng := redis.NewEngine(addr, redis.WithLogLevel(redis.LevelWarning))
	if !eng.Connect(context.Background()) {
		fmt.Fprintf(os.Stderr, "failed to connect to %s\n", addr)
		os.Exit(1)
	}
	return eng
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "GET a key and print its value",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng := dial()
			defer eng.Disconnect()

			value, ok, err := redisx.Get(context.Background(), eng, args[0])
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			if !ok {
				fmt.Println("(nil)")
				return
			}
			fmt.Println(string(value))
		},
	}
}

func setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "SET a key's value",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			eng := dial()
			defer eng.Disconnect()

			if err := redisx.Set(context.Background(), eng, args[0], []byte(args[1])); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}
}

func delCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "del <key>",
		Short: "DEL a key",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng := dial()
			defer eng.Disconnect()

			if err := redisx.Del(context.Background(), eng, args[0]); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		},
	}
}

func subCmd() *cobra.Command {
	var pattern bool
	c := &cobra.Command{
		Use:   "sub <channel|pattern>",
		Short: "SUBSCRIBE (or, with --pattern, PSUBSCRIBE) and print messages forever",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			sub := redis.NewSubscriber(addr, redis.WithLogLevel(redis.LevelWarning))
			if !sub.Connect(context.Background()) {
				fmt.Fprintf(os.Stderr, "failed to connect to %s\n", addr)
				os.Exit(1)
			}
			defer sub.Disconnect()

			if pattern {
				sub.PSubscribe(args[0], func(pat, channel string, message []byte) {
					fmt.Printf("%s (via %s): %s\n", channel, pat, message)
				}, func(pat string) {
					fmt.Fprintf(os.Stderr, "psubscribed to %s\n", pat)
				}, nil, func(pat string, status redis.ReplyStatus) {
					fmt.Fprintf(os.Stderr, "psubscribe %s failed: %s\n", pat, status)
				})
			} else {
				sub.Subscribe(args[0], func(channel string, message []byte) {
					fmt.Printf("%s: %s\n", channel, message)
				}, func(channel string) {
					fmt.Fprintf(os.Stderr, "subscribed to %s\n", channel)
				}, nil, func(channel string, status redis.ReplyStatus) {
					fmt.Fprintf(os.Stderr, "subscribe %s failed: %s\n", channel, status)
				})
			}
			select {}
		},
	}
	c.Flags().BoolVar(&pattern, "pattern", false, "treat the argument as a PSUBSCRIBE pattern")
	return c
}

func pubCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pub <channel> <message>",
		Short: "PUBLISH a message to a channel",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			eng := dial()
			defer eng.Disconnect()

			done := make(chan struct{})
			eng.Publish(args[0], args[1], func(string, string) {
				close(done)
			}, func(topic string, status redis.ReplyStatus) {
				fmt.Fprintf(os.Stderr, "publish to %s failed: %s\n", topic, status)
				close(done)
			})
			<-done
		},
	}
}

func loopCmd() *cobra.Command {
	var interval time.Duration
	c := &cobra.Command{
		Use:   "loop <key>",
		Short: "Issue GET <key> repeatedly and print every reply",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			eng := dial()
			defer eng.Disconnect()

			argv := [][]byte{[]byte("GET"), []byte(args[0])}
			_, err := eng.CommandLoop(argv, redis.ShapeString, func(c *redis.Command) {
				fmt.Printf("[%s] %v\n", c.Status(), c.Reply())
			}, interval, 0)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
			select {}
		},
	}
	c.Flags().DurationVar(&interval, "interval", time.Second, "how often to repeat the command")
	return c
}
