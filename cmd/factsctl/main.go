// Command factsctl queries memfactsd and procfactsd.
//
//	factsctl mem [-addr host:port] [-unit Bytes|MegaBytes|GigaBytes] [-framing length|raw]
//	factsctl proc [-addr host:port] [-framing length|raw]
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/oleksiiilienko/hostfacts/internal/client"
	"github.com/oleksiiilienko/hostfacts/internal/telemetry"
	"github.com/oleksiiilienko/hostfacts/internal/wire"
)

const usage = "usage: factsctl mem|proc [flags]"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "factsctl:", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	cmd, args := args[0], args[1:]

	fs := flag.NewFlagSet("factsctl "+cmd, flag.ContinueOnError)
	fs.SetOutput(stderr)
	framing := fs.String("framing", wire.FramingLength, "Message framing (length or raw)")
	timeout := fs.Duration("timeout", 3*time.Second, "Request timeout")

	switch cmd {
	case "mem":
		addr := fs.String("addr", "127.0.0.1:8080", "memfactsd address")
		unitFlag := fs.String("unit", string(telemetry.UnitMegaBytes), "Memory unit: Bytes, MegaBytes or GigaBytes")
		if err := fs.Parse(args); err != nil {
			return err
		}
		unit, err := telemetry.ParseMemoryUnit(*unitFlag)
		if err != nil {
			return err
		}
		return withClient(*addr, *framing, *timeout, func(ctx context.Context, c *client.Client) error {
			resp, err := c.Memory(ctx, unit)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Host: %s\nUser: %s\nFree memory: %.2f %s\nTime: %s\n",
				resp.Hostname, resp.Username, resp.FreeMemory, resp.Unit, resp.Timestamp)
			return nil
		})

	case "proc":
		addr := fs.String("addr", "127.0.0.1:8081", "procfactsd address")
		if err := fs.Parse(args); err != nil {
			return err
		}
		return withClient(*addr, *framing, *timeout, func(ctx context.Context, c *client.Client) error {
			resp, err := c.Process(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(stdout, "Server process priority: %d\nThread ids: %s\nTime: %s\n",
				resp.Priority, formatIDs(resp.ThreadIDs), resp.Timestamp)
			return nil
		})

	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func withClient(addr, framing string, timeout time.Duration, fn func(context.Context, *client.Client) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	c, err := client.Dial(ctx, addr, framing)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(ctx, c)
}

// formatIDs renders ids as "[1, 2, 3]".
func formatIDs(ids []uint32) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
