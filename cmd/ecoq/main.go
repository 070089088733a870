// Command ecoq is a CLI client for the EcoQuest gRPC API.
package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/and161185/ecoquest/internal/convert"
	"github.com/and161185/ecoquest/internal/rpc"
)

// ---- config/token store ----

type tokenFile struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      string    `json:"user_id"`
}

func cfgDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "ecoquest")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ecoquest")
}

func tokenPath() string { return filepath.Join(cfgDir(), "token.json") }

func saveToken(tf tokenFile) error {
	if err := os.MkdirAll(cfgDir(), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(tokenPath(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(tf)
}

func loadToken() (string, error) {
	b, err := os.ReadFile(tokenPath())
	if err != nil {
		return "", err
	}
	var tf tokenFile
	if err := json.Unmarshal(b, &tf); err != nil {
		return "", err
	}
	if tf.AccessToken == "" || time.Now().After(tf.ExpiresAt) {
		return "", errors.New("no valid token (login required)")
	}
	return tf.AccessToken, nil
}

// ---- grpc dial ----

func loadTLS(caPath string, skipVerify bool) (credentials.TransportCredentials, error) {
	if skipVerify {
		return credentials.NewTLS(&tls.Config{InsecureSkipVerify: true}), nil //nolint:gosec // dev only
	}
	if caPath == "" {
		return credentials.NewClientTLSFromCert(nil, ""), nil
	}
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return nil, err
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.New("bad CA cert")
	}
	return credentials.NewTLS(&tls.Config{RootCAs: pool}), nil
}

// ---- app ----

type app struct {
	out  io.Writer
	in   io.Reader
	dial func() (grpc.ClientConnInterface, func(), error)
}

func newApp(addr, caPath string, skipVerify, plaintext bool) *app {
	a := &app{out: os.Stdout, in: os.Stdin}
	a.dial = func() (grpc.ClientConnInterface, func(), error) {
		creds := insecure.NewCredentials()
		if !plaintext {
			var err error
			if creds, err = loadTLS(caPath, skipVerify); err != nil {
				return nil, nil, err
			}
		}
		cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
		if err != nil {
			return nil, nil, err
		}
		return cc, func() { _ = cc.Close() }, nil
	}
	return a
}

// call dials, optionally attaches the saved token and performs one RPC.
func (a *app) call(ctx context.Context, method string, authed bool, in, out any) error {
	if authed {
		token, err := loadToken()
		if err != nil {
			return err
		}
		ctx = rpc.WithBearer(ctx, token)
	}
	cc, closeFn, err := a.dial()
	if err != nil {
		return err
	}
	defer closeFn()
	return rpc.NewClient(cc).Call(ctx, method, in, out)
}

func (a *app) printJSON(v any) {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func (a *app) readAll(p string) ([]byte, error) {
	if p == "-" {
		return io.ReadAll(a.in)
	}
	return os.ReadFile(p)
}

// imageType picks the mime type from the extension, sniffing the bytes otherwise.
func imageType(path string, b []byte) string {
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); strings.HasPrefix(t, "image/") {
		if i := strings.IndexByte(t, ';'); i > 0 {
			t = t[:i]
		}
		return t
	}
	t := http.DetectContentType(b)
	if i := strings.IndexByte(t, ';'); i > 0 {
		t = t[:i]
	}
	return t
}

var errUsage = errors.New("usage")

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "version":
		fmt.Fprintf(a.out, "ecoq %s (%s)\n", version, buildDate)
		return nil

	case "register":
		fs := flag.NewFlagSet("register", flag.ContinueOnError)
		name := fs.String("name", "", "display name")
		email := fs.String("email", "", "email")
		p := fs.String("p", "", "password")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		if *name == "" || *email == "" || *p == "" {
			return fmt.Errorf("%w: need -name, -email and -p", errUsage)
		}
		var u map[string]any
		if err := a.call(ctx, rpc.MethodRegister, false,
			convert.RegisterRequest{Name: *name, Email: *email, Password: *p}, &u); err != nil {
			return err
		}
		fmt.Fprintln(a.out, u["_id"])
		return nil

	case "login":
		fs := flag.NewFlagSet("login", flag.ContinueOnError)
		email := fs.String("email", "", "email")
		p := fs.String("p", "", "password")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		if *email == "" || *p == "" {
			return fmt.Errorf("%w: need -email and -p", errUsage)
		}
		var resp convert.LoginView
		if err := a.call(ctx, rpc.MethodLogin, false, convert.LoginRequest{Email: *email, Password: *p}, &resp); err != nil {
			return err
		}
		exp := resp.ExpiresAt
		if exp.IsZero() {
			exp = time.Now().Add(15 * time.Minute)
		}
		if err := saveToken(tokenFile{AccessToken: resp.Token, ExpiresAt: exp, UserID: resp.User.ID}); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "ok")
		return nil

	case "profile":
		var u map[string]any
		if err := a.call(ctx, rpc.MethodProfile, true, nil, &u); err != nil {
			return err
		}
		a.printJSON(u)
		return nil

	case "submit":
		fs := flag.NewFlagSet("submit", flag.ContinueOnError)
		typ := fs.String("type", "", "activity type, e.g. \"Planted Tree\"")
		points := fs.Float64("points", 0, "points earned")
		co2 := fs.Float64("co2", 0, "kg of CO2 saved")
		lat := fs.String("lat", "", "latitude")
		lon := fs.String("lon", "", "longitude")
		image := fs.String("image", "", "photo file ('-' for stdin)")
		date := fs.String("date", "", "activity time (RFC3339), default now")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		req, err := a.buildSubmit(*typ, *points, *co2, *lat, *lon, *image, *date)
		if err != nil {
			return err
		}
		var out convert.SubmissionView
		if err := a.call(ctx, rpc.MethodSubmitActivity, true, req, &out); err != nil {
			return err
		}
		a.printJSON(out)
		return nil

	case "list":
		var out convert.ActivitiesView
		if err := a.call(ctx, rpc.MethodListActivities, true, nil, &out); err != nil {
			return err
		}
		a.printJSON(out)
		return nil

	case "today":
		fs := flag.NewFlagSet("today", flag.ContinueOnError)
		at := fs.String("at", "", "reference time (RFC3339), default now")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		in := map[string]any{}
		if *at != "" {
			t, err := time.Parse(time.RFC3339, *at)
			if err != nil {
				return fmt.Errorf("-at: %w", err)
			}
			in["at"] = t
		}
		var out convert.ActivitiesView
		if err := a.call(ctx, rpc.MethodTodayActivities, true, in, &out); err != nil {
			return err
		}
		a.printJSON(out)
		return nil

	case "leaderboard":
		fs := flag.NewFlagSet("leaderboard", flag.ContinueOnError)
		limit := fs.Int("limit", 10, "rows")
		if err := fs.Parse(args); err != nil {
			return errUsage
		}
		var out convert.LeaderboardView
		if err := a.call(ctx, rpc.MethodLeaderboard, false, map[string]int{"limit": *limit}, &out); err != nil {
			return err
		}
		for _, e := range out.Entries {
			fmt.Fprintf(a.out, "%3d  %-20s %6d\n", e.Rank, e.Name, e.Points)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
}

func (a *app) buildSubmit(typ string, points, co2 float64, lat, lon, image, date string) (convert.ActivityRequest, error) {
	req := convert.ActivityRequest{Type: typ, Points: points, CO2Saved: co2}
	var err error
	if req.Latitude, err = parseCoord("-lat", lat); err != nil {
		return req, err
	}
	if req.Longitude, err = parseCoord("-lon", lon); err != nil {
		return req, err
	}
	if date != "" {
		t, err := time.Parse(time.RFC3339, date)
		if err != nil {
			return req, fmt.Errorf("-date: %w", err)
		}
		req.Date = &t
	}
	if image != "" {
		b, err := a.readAll(image)
		if err != nil {
			return req, err
		}
		req.Image = base64.StdEncoding.EncodeToString(b)
		req.ImageType = imageType(image, b)
	}
	return req, nil
}

func parseCoord(flagName, v string) (*float64, error) {
	if v == "" {
		return nil, nil
	}
	var f float64
	if _, err := fmt.Sscan(v, &f); err != nil {
		return nil, fmt.Errorf("%s: not a number", flagName)
	}
	return &f, nil
}

// describe renders an RPC error with the server's error kind when present.
func describe(err error) string {
	if v, ok := rpc.ErrorViewFromStatus(err); ok {
		if v.ActivityID != "" {
			return fmt.Sprintf("%s: %s (activity %s)", v.ErrorKind, v.Message, v.ActivityID)
		}
		return fmt.Sprintf("%s: %s", v.ErrorKind, v.Message)
	}
	if st, ok := status.FromError(err); ok {
		return fmt.Sprintf("%s: %s", st.Code(), st.Message())
	}
	return err.Error()
}

func usage() {
	fmt.Fprintf(os.Stderr, `ecoq CLI
Usage:
  ecoq -addr HOST:PORT [-cacert file | -insecure | -plaintext] <cmd> [args]

Commands:
  version
  register     -name <name> -email <email> -p <password>
  login        -email <email> -p <password>          (saves token)
  profile
  submit       -type <type> -points <n> -co2 <kg> [-lat <f> -lon <f>] [-image <file>] [-date <RFC3339>]
  list
  today        [-at <RFC3339>]
  leaderboard  [-limit <n>]
`)
}

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	addr := flag.String("addr", "localhost:9090", "server addr")
	caPath := flag.String("cacert", "", "CA cert (PEM)")
	skipVerify := flag.Bool("insecure", false, "skip cert verify (dev)")
	plaintext := flag.Bool("plaintext", false, "no TLS (dev)")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := newApp(*addr, *caPath, *skipVerify, *plaintext).run(ctx, flag.Arg(0), flag.Args()[1:])
	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		usage()
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "error:", describe(err))
		os.Exit(1)
	}
}
