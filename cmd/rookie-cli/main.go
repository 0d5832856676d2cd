package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/encoding/protojson"

	"rookie/internal/config"
	"rookie/internal/domain"
	"rookie/internal/indicator"
	"rookie/internal/market"
	"rookie/internal/news"
	"rookie/internal/rpc"
	"rookie/internal/util"
	"rookie/internal/wallet"
)

const version = "0.1.0"

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: rookie-cli <command> [options]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  version                 Print the CLI version\n")
	fmt.Fprintf(os.Stderr, "  crypto [ids]            Crypto markets (top coins when ids is empty)\n")
	fmt.Fprintf(os.Stderr, "  trending                Trending coins\n")
	fmt.Fprintf(os.Stderr, "  quotes <symbols>        Equity quotes, comma separated\n")
	fmt.Fprintf(os.Stderr, "  bist                    Borsa Istanbul quotes\n")
	fmt.Fprintf(os.Stderr, "  news [category]         News: stocks, crypto or rss\n")
	fmt.Fprintf(os.Stderr, "  wallet <address>        Value an Ethereum wallet\n")
	fmt.Fprintf(os.Stderr, "  technicals <symbol>     RSI and SMA for an equity\n")
	fmt.Fprintf(os.Stderr, "  snapshot [-addr a] [dataset]\n")
	fmt.Fprintf(os.Stderr, "                          Query a running server over gRPC\n")
	fmt.Fprintf(os.Stderr, "\n")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ctx, cancelTimeout := context.WithTimeout(ctx, time.Minute)
	defer cancelTimeout()

	cmd, args := os.Args[1], os.Args[2:]
	if cmd == "version" {
		fmt.Printf("rookie-cli %s\n", version)
		return
	}
	if cmd == "snapshot" {
		if err := snapshot(ctx, args); err != nil {
			log.Fatalf("snapshot: %v", err)
		}
		return
	}

	cfg := config.Default()
	if p := os.Getenv("ROOKIE_CONFIG"); p != "" {
		var err error
		if cfg, err = config.Load(p); err != nil {
			log.Fatalf("loading config: %v", err)
		}
	}
	logger := util.NewLoggerTo(os.Stderr, cfg.Logging.Level, "text")
	transport := market.NewTransport(cfg.HTTP, logger)
	mc := market.NewClient(transport, cfg, logger)
	if bars := market.NewAlpacaBars(cfg.Alpaca); bars != nil {
		mc.SetBarSource(bars)
	}

	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	var (
		out any
		err error
	)
	switch cmd {
	case "crypto":
		out, err = mc.FetchCrypto(ctx, arg(0))
	case "trending":
		out, err = mc.FetchTrending(ctx)
	case "quotes":
		if arg(0) == "" {
			log.Fatal("quotes: symbols required")
		}
		out, err = mc.FetchQuotes(ctx, arg(0))
	case "bist":
		out, err = mc.FetchBIST(ctx)
	case "news":
		out, err = news.NewFetcher(transport, cfg, logger).Fetch(ctx, arg(0))
	case "wallet":
		v := wallet.NewValuator(wallet.NewMoralis(transport, cfg.Moralis, logger), mc, nil, logger)
		out, err = v.Load(ctx, arg(0))
	case "technicals":
		if arg(0) == "" {
			log.Fatal("technicals: symbol required")
		}
		out = technicals(ctx, mc, arg(0))
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
	printJSON(out)
}

type technicalsOutput struct {
	Symbol string  `json:"symbol"`
	Source string  `json:"source"`
	Points int     `json:"points"`
	RSI    float64 `json:"rsi"`
	SMA    float64 `json:"sma"`
	Signal string  `json:"signal"`
}

func technicals(ctx context.Context, mc *market.Client, symbol string) any {
	a := domain.Asset{ID: symbol, Symbol: symbol, Class: domain.AssetClassStock}
	if quotes, err := mc.FetchQuotes(ctx, symbol); err == nil && len(quotes) > 0 {
		a = quotes[0]
	}
	series := indicator.NewSeriesResolver(nil, mc, nil).Resolve(ctx, a)
	out := technicalsOutput{Symbol: a.Symbol, Source: series.Source, Points: len(series.Points)}
	if t, ok := indicator.Compute(series.Points); ok {
		out.RSI = indicator.RoundRSI(t.RSI)
		out.SMA = indicator.RoundSMA(t.SMA)
		out.Signal = indicator.Signal(t.RSI)
	}
	return out
}

// dialRPC parses the -addr flag for name and connects to the server.
func dialRPC(name string, args []string) (*grpc.ClientConn, string, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	addr := fs.String("addr", "localhost:9090", "gRPC server address")
	if err := fs.Parse(args); err != nil {
		return nil, "", err
	}
	conn, err := grpc.NewClient(*addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, "", fmt.Errorf("connecting to %s: %w", *addr, err)
	}
	return conn, fs.Arg(0), nil
}

func snapshot(ctx context.Context, args []string) error {
	conn, dataset, err := dialRPC("snapshot", args)
	if err != nil {
		return err
	}
	defer conn.Close()

	out, err := rpc.NewClient(conn).Get(ctx, dataset)
	if err != nil {
		return err
	}
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(out)
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encoding output: %v", err)
	}
}
