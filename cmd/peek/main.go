// Command peek subscribes to the relay's bus pattern and prints every
// envelope it sees. Handy when debugging delivery across instances.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"unicode/utf8"

	"github.com/turbochat/relay/internal/bus"
	"github.com/turbochat/relay/internal/contract"
)

func main() {
	var (
		redisURL = flag.String("redis", "redis://localhost:6379/0", "redis URL")
		pattern  = flag.String("pattern", bus.Pattern, "topic pattern to watch")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := bus.NewRedis(ctx, *redisURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "redis connect error: %v\n", err)
		os.Exit(1)
	}
	defer b.Close()

	sub, err := b.SubscribePattern(ctx, *pattern)
	if err != nil {
		fmt.Fprintf(os.Stderr, "subscribe error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("watching", *pattern)

	codec := contract.JSONCodec{}
	for d := range sub.C() {
		env, err := codec.Unmarshal(d.Payload)
		if err != nil {
			fmt.Printf("%s  <undecodable: %v>\n", d.Topic, err)
			continue
		}
		content := "<binary>"
		if utf8.Valid(env.Content) {
			content = string(env.Content)
		}
		mark := " "
		if !env.Verify() {
			mark = "!"
		}
		fmt.Printf("%s%s shop=%s guest=%d id=%d %s: %q\n",
			mark, d.Topic, env.ShopID, env.GuestID, env.MessageID, env.SenderType, content)
	}
}
