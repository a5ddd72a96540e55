// Command adjudicate decides a single refund claim (or a batch) from
// the command line: the payload comes in as an argument or on stdin and
// the disposition comes out as JSON on stdout, which is how the
// workflow runner invokes the engine.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"refundflow/db"
	"refundflow/engine"
	"refundflow/gateway"
	"refundflow/ledger"
	"refundflow/notify"
	"refundflow/sink"
	"refundflow/worker"
)

func main() {
	batch := flag.Bool("batch", false, "read newline-delimited claim payloads from stdin")
	concurrency := flag.Int("concurrency", 4, "max in-flight adjudications in batch mode")
	flag.Parse()

	ctx := context.Background()

	gatewayURL := os.Getenv("MODEL_GATEWAY_URL")
	if gatewayURL == "" {
		log.Fatal("MODEL_GATEWAY_URL is required")
	}
	gw := gateway.NewClient(gatewayURL, os.Getenv("MODEL_GATEWAY_API_KEY"))
	eng := engine.New(gw, gw, gw, gw)

	runner, cleanup := buildRunner(ctx)
	defer cleanup()

	if *batch {
		if err := runBatch(ctx, eng, runner, *concurrency); err != nil {
			log.Fatalf("batch: %v", err)
		}
		return
	}

	raw, err := readPayload(flag.Args())
	if err != nil {
		log.Fatalf("read payload: %v", err)
	}

	d, effects, _ := eng.Process(ctx, raw)
	runner.Run(ctx, d, effects)

	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		log.Fatalf("encode disposition: %v", err)
	}
	fmt.Println(string(out))
}

// buildRunner assembles the effect runner from the environment. Both
// collaborators are optional for local runs: without DATABASE_URL the
// ledger append is skipped, without Telegram credentials the
// notification is skipped.
func buildRunner(ctx context.Context) (*sink.Runner, func()) {
	notifier := &notify.Telegram{
		Token:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		ChatID: os.Getenv("TELEGRAM_CHAT_ID"),
	}

	var appender sink.LedgerAppender
	cleanup := func() {}
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pool, err := db.NewPool(ctx, dsn)
		if err != nil {
			log.Fatalf("bootstrap database pool: %v", err)
		}
		appender = ledger.NewRepository(pool)
		cleanup = pool.Close
	}

	return sink.NewRunner(notifier, appender), cleanup
}

func readPayload(args []string) ([]byte, error) {
	if len(args) > 0 && args[0] != "" {
		return []byte(args[0]), nil
	}
	return io.ReadAll(os.Stdin)
}

// runBatch adjudicates one payload per stdin line and emits one
// disposition JSON per line, in input order.
func runBatch(ctx context.Context, eng *engine.Engine, runner *sink.Runner, concurrency int) error {
	var payloads [][]byte
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		payloads = append(payloads, append([]byte(nil), line...))
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	results := worker.ProcessBatch(ctx, eng, payloads, concurrency)

	enc := json.NewEncoder(os.Stdout)
	for _, res := range results {
		runner.Run(ctx, res.Disposition, res.Effects)
		if err := enc.Encode(res.Disposition); err != nil {
			return fmt.Errorf("encode disposition: %w", err)
		}
	}
	return nil
}
