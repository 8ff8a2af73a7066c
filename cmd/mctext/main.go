// Command mctext is an interactive shell for poking at a memcached server
// with the classic text protocol.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cachelab/memcache"
)

func main() {
	addr := flag.String("addr", "localhost:11211", "server address")
	configPath := flag.String("config", "", "optional TOML config file (overrides -addr)")
	flag.Parse()

	servers := memcache.NewStaticServers(*addr)
	config := memcache.Config{
		MaxSize:        4,
		ConnectTimeout: 2 * time.Second,
		ReadTimeout:    2 * time.Second,
	}

	if *configPath != "" {
		var err error
		servers, config, err = memcache.LoadConfig(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	client, err := memcache.NewClient(servers, config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	fmt.Println("Commands: get <key>, gets <key>, set <key> <value> [ttl], delete <key>,")
	fmt.Println("          incr <key> <delta>, decr <key> <delta>, mget <key>..., stats, version, quit")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		run(ctx, client, parts)
		cancel()

		if strings.ToLower(parts[0]) == "quit" {
			return
		}
	}
}

func run(ctx context.Context, client *memcache.Client, parts []string) {
	switch strings.ToLower(parts[0]) {
	case "get", "gets":
		if len(parts) != 2 {
			fmt.Printf("Usage: %s <key>\n", parts[0])
			return
		}
		var item memcache.Item
		var err error
		if parts[0] == "gets" {
			item, err = client.Gets(ctx, parts[1])
		} else {
			item, err = client.Get(ctx, parts[1])
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if !item.Found {
			fmt.Println("(not found)")
			return
		}
		if item.CAS != 0 {
			fmt.Printf("%q (flags=%d cas=%d)\n", item.Value, item.Flags, item.CAS)
		} else {
			fmt.Printf("%q (flags=%d)\n", item.Value, item.Flags)
		}

	case "set":
		if len(parts) < 3 || len(parts) > 4 {
			fmt.Println("Usage: set <key> <value> [ttl_seconds]")
			return
		}
		item := memcache.Item{Key: parts[1], Value: []byte(parts[2])}
		if len(parts) == 4 {
			seconds, err := strconv.Atoi(parts[3])
			if err != nil {
				fmt.Printf("Invalid TTL: %v\n", err)
				return
			}
			item.TTL = time.Duration(seconds) * time.Second
		}
		if err := client.Set(ctx, item); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("STORED")

	case "delete", "del":
		if len(parts) != 2 {
			fmt.Println("Usage: delete <key>")
			return
		}
		deleted, err := client.Delete(ctx, parts[1])
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if deleted {
			fmt.Println("DELETED")
		} else {
			fmt.Println("(not found)")
		}

	case "incr", "decr":
		if len(parts) != 3 {
			fmt.Printf("Usage: %s <key> <delta>\n", parts[0])
			return
		}
		delta, err := strconv.ParseUint(parts[2], 10, 64)
		if err != nil {
			fmt.Printf("Invalid delta: %v\n", err)
			return
		}
		var value uint64
		var found bool
		if parts[0] == "incr" {
			value, found, err = client.Incr(ctx, parts[1], delta)
		} else {
			value, found, err = client.Decr(ctx, parts[1], delta)
		}
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		if !found {
			fmt.Println("(not found)")
			return
		}
		fmt.Println(value)

	case "mget":
		if len(parts) < 2 {
			fmt.Println("Usage: mget <key> <key>...")
			return
		}
		items, err := client.MultiGet(ctx, parts[1:]...)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		for _, key := range parts[1:] {
			if item, ok := items[key]; ok {
				fmt.Printf("%s = %q\n", key, item.Value)
			} else {
				fmt.Printf("%s (not found)\n", key)
			}
		}

	case "stats":
		stats, err := client.Stats(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		for name, value := range stats {
			fmt.Printf("%s: %s\n", name, value)
		}

	case "version":
		version, err := client.Version(ctx)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println(version)

	case "quit", "exit":

	default:
		fmt.Printf("Unknown command: %s\n", parts[0])
	}
}
