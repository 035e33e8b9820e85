package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"conversation-analytics/backend/pkg/jwt"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

type frame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

func main() {
	mintPtr := flag.Bool("mint", false, "Print a signed access token")
	streamPtr := flag.Bool("stream", false, "Follow the realtime metrics stream of a company")
	helpPtr := flag.Bool("help", false, "Show usage information")

	subject := flag.String("sub", "analyticsctl", "Token subject")
	email := flag.String("email", "", "Token email claim")
	role := flag.String("role", "", "Token role claim (admin grants every company)")
	companies := flag.String("companies", "", "Comma-separated company ids for the company_ids claim")
	expiry := flag.Duration("expiry", 24*time.Hour, "Token lifetime")

	baseURL := flag.String("url", "http://localhost:8081", "Server base URL")
	companyID := flag.Int64("company", 0, "Company to stream")
	token := flag.String("token", "", "Bearer token for -stream (minted from JWT_SECRET when empty)")

	flag.Parse()

	if *helpPtr || (!*mintPtr && !*streamPtr) {
		fmt.Println("Analytics Tools Usage:")
		fmt.Println("  -mint      Print a signed access token (needs JWT_SECRET)")
		fmt.Println("  -stream    Follow /api/metrics/realtime/stream for -company")
		fmt.Println("  -help      Show this help message")
		flag.PrintDefaults()
		os.Exit(0)
	}

	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	mint := func() string {
		secret := os.Getenv("JWT_SECRET")
		if secret == "" {
			log.Fatal("JWT_SECRET is not set")
		}
		extra, err := claims(*role, *companies)
		if err != nil {
			log.Fatalf("Invalid -companies: %v", err)
		}
		tok, err := jwt.NewService(secret, *expiry).GenerateToken(*subject, *email, extra)
		if err != nil {
			log.Fatalf("Failed to sign token: %v", err)
		}
		return tok
	}

	if *mintPtr {
		fmt.Println(mint())
	}

	if *streamPtr {
		if *companyID <= 0 {
			log.Fatal("-stream needs -company")
		}
		if *token == "" {
			*token = mint()
		}
		if err := stream(*baseURL, *companyID, *token); err != nil {
			log.Fatalf("Stream failed: %v", err)
		}
	}
}

func claims(role, companies string) (map[string]any, error) {
	extra := map[string]any{}
	if role != "" {
		extra["role"] = role
	}
	if companies == "" {
		return extra, nil
	}
	var ids []int64
	for _, part := range strings.Split(companies, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("%q is not a company id", part)
		}
		ids = append(ids, id)
	}
	extra["company_ids"] = ids
	return extra, nil
}

func streamURL(base string, companyID int64) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/api/metrics/realtime/stream"
	u.RawQuery = url.Values{"company_id": {strconv.FormatInt(companyID, 10)}}.Encode()
	return u.String(), nil
}

func stream(base string, companyID int64, token string) error {
	target, err := streamURL(base, companyID)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	conn, resp, err := websocket.DefaultDialer.Dial(target, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %s", target, resp.Status)
		}
		return fmt.Errorf("dial %s: %w", target, err)
	}
	defer conn.Close()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	frames := make(chan frame)
	errs := make(chan error, 1)
	go func() {
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				errs <- err
				return
			}
			frames <- f
		}
	}()

	log.Printf("Following realtime metrics for company %d", companyID)
	for {
		select {
		case f := <-frames:
			if f.Type == "error" {
				log.Printf("[%s] error: %s", f.Timestamp.Format(time.TimeOnly), f.Error)
				continue
			}
			log.Printf("[%s] %s", f.Timestamp.Format(time.TimeOnly), f.Data)
		case err := <-errs:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		case <-interrupt:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return nil
		}
	}
}
