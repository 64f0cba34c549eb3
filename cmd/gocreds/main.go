// Command gocreds administers a goCreds user file from the shell.
//
// Usage:
//
//	gocreds [global flags] <command> [command flags]
//
// Commands:
//
//	list                             print every user
//	add -username NAME [...]         create a user; prompts for a password unless -generate
//	passwd -id ID                    set a new password (prompted)
//	toggle -id ID                    flip the active flag
//	delete -id ID                    remove a user
//	totp-enable -id ID [-secret S]   enroll TOTP, generating a secret when none is given
//	totp-disable -id ID              remove TOTP
//	verify -handle H [-code C]       check a password (prompted) and optionally a TOTP code
//	backup -out PATH                 copy the user document to PATH
//
// GOCREDS_FILE_PATH, GOCREDS_HASH_COST and GOCREDS_TOTP_ISSUER seed the
// configuration; global flags override them.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	goCreds "github.com/MrEthical07/goCreds"
	"github.com/MrEthical07/goCreds/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = func() ([]byte, error) {
	return term.ReadPassword(int(os.Stdin.Fd()))
}

type globalFlags struct {
	filePath    string
	hashCost    int
	issuer      string
	redisAddr   string
	redisPrefix string
	verbose     bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("gocreds", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var g globalFlags
	fs.StringVar(&g.filePath, "file", "", "user file path (default content/users.json)")
	fs.IntVar(&g.hashCost, "cost", 0, "bcrypt cost factor")
	fs.StringVar(&g.issuer, "issuer", "", "TOTP issuer label")
	fs.StringVar(&g.redisAddr, "redis-addr", "", "keep the user document in Redis at this address instead of on disk")
	fs.StringVar(&g.redisPrefix, "redis-prefix", storage.DefaultRedisPrefix, "Redis key prefix")
	fs.BoolVar(&g.verbose, "v", false, "verbose logging")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "missing command; run with -h for usage")
		return 2
	}

	logger, err := newLogger(g.verbose)
	if err != nil {
		fmt.Fprintf(stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	store, cleanup, err := openStore(g, logger)
	if err != nil {
		fmt.Fprintf(stderr, "configuration error: %v\n", err)
		return 1
	}
	defer cleanup()

	c := &cli{store: store, stdout: stdout, stderr: stderr}
	if err := c.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		fmt.Fprintf(stderr, "%s: %v\n", fs.Arg(0), err)
		return 1
	}
	return 0
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.OutputPaths = []string{"stderr"}
	return cfg.Build()
}

func openStore(g globalFlags, logger *zap.Logger) (*goCreds.Store, func(), error) {
	env, err := goCreds.LoadEnvOptions("GOCREDS")
	if err != nil {
		return nil, nil, err
	}

	cfg, err := goCreds.NewConfig(goCreds.RecommendedGenerators())
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Configure(env); err != nil {
		return nil, nil, err
	}

	opts := goCreds.Options{
		FilePath: g.filePath,
		HashCost: g.hashCost,
		Issuer:   g.issuer,
		Logger:   logger,

		// Failed operations reach stderr at Warn; -v adds successes.
		AuditSink: goCreds.NewZapSink(logger),
	}

	cleanup := func() {}
	if g.redisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: g.redisAddr})
		backend := storage.NewRedisBackend(client, g.redisPrefix)
		opts.ReadFile = backend.Read
		opts.WriteFile = backend.Write
		cleanup = func() { _ = client.Close() }
	}

	if err := cfg.Configure(opts); err != nil {
		cleanup()
		return nil, nil, err
	}

	store, err := goCreds.NewStore(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return store, cleanup, nil
}

var errUsage = errors.New("usage error")

type cli struct {
	store  *goCreds.Store
	stdout io.Writer
	stderr io.Writer
}

func (c *cli) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "list":
		return c.list(ctx)
	case "add":
		return c.add(ctx, args)
	case "passwd":
		return c.passwd(ctx, args)
	case "toggle":
		return c.toggle(ctx, args)
	case "delete":
		return c.delete(ctx, args)
	case "totp-enable":
		return c.totpEnable(ctx, args)
	case "totp-disable":
		return c.totpDisable(ctx, args)
	case "verify":
		return c.verify(ctx, args)
	case "backup":
		return c.backup(ctx, args)
	default:
		fmt.Fprintf(c.stderr, "unknown command %q\n", cmd)
		return errUsage
	}
}

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *cli) parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}
		return errUsage
	}
	return nil
}

func (c *cli) requireID(name string, args []string) (string, error) {
	fs := c.flagSet(name)
	id := fs.String("id", "", "user id")
	if err := c.parse(fs, args); err != nil {
		return "", err
	}
	if *id == "" {
		fmt.Fprintln(c.stderr, "-id is required")
		return "", errUsage
	}
	return *id, nil
}

func (c *cli) promptPassword(prompt string) (string, error) {
	fmt.Fprint(c.stderr, prompt)
	pw, err := readPassword()
	fmt.Fprintln(c.stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

func (c *cli) list(ctx context.Context) error {
	w := tabwriter.NewWriter(c.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tUSERNAME\tHANDLE\tROLE\tACTIVE\tTOTP\tFIRST LOGIN\tLAST LOGIN")
	for _, u := range c.store.List(ctx) {
		handle := "-"
		if u.Handle != nil {
			handle = *u.Handle
		}
		lastLogin := "never"
		if u.LastLogin != nil {
			lastLogin = u.LastLogin.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\t%t\t%t\t%s\n",
			u.ID, u.Username, handle, u.Role, u.IsActive, u.TOTPEnabled, u.FirstLogin, lastLogin)
	}
	return w.Flush()
}

func (c *cli) add(ctx context.Context, args []string) error {
	fs := c.flagSet("add")
	username := fs.String("username", "", "unique username")
	handle := fs.String("handle", "", "login handle")
	display := fs.String("display", "", "display name (default username)")
	role := fs.String("role", "", "role label")
	generate := fs.Bool("generate", false, "generate a temporary password and TOTP secret")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if *username == "" {
		fmt.Fprintln(c.stderr, "-username is required")
		return errUsage
	}

	in := goCreds.CreateUserInput{
		Username:            *username,
		DisplayName:         *display,
		Role:                *role,
		GenerateCredentials: *generate,
	}
	if *handle != "" {
		in.Handle = handle
	}
	if !*generate {
		pw, err := c.promptPassword("Password (empty for a temporary one): ")
		if err != nil {
			return err
		}
		in.Password = pw
	}

	res, err := c.store.Create(ctx, in)
	if res != nil {
		fmt.Fprintf(c.stdout, "created %s (%s)\n", res.User.Username, res.User.ID)
		if res.TempPassword != "" {
			fmt.Fprintf(c.stdout, "temporary password: %s\n", res.TempPassword)
		}
		if res.EnrollmentURI != "" {
			fmt.Fprintf(c.stdout, "totp uri: %s\n", res.EnrollmentURI)
		}
	}
	return err
}

func (c *cli) passwd(ctx context.Context, args []string) error {
	id, err := c.requireID("passwd", args)
	if err != nil {
		return err
	}
	pw, err := c.promptPassword("New password: ")
	if err != nil {
		return err
	}
	ok, err := c.store.UpdatePassword(ctx, id, pw)
	if err != nil {
		return err
	}
	return c.report(ok, id, "password updated")
}

func (c *cli) toggle(ctx context.Context, args []string) error {
	id, err := c.requireID("toggle", args)
	if err != nil {
		return err
	}
	u, ok, err := c.store.ToggleActive(ctx, id)
	if err != nil {
		return err
	}
	return c.report(ok, id, fmt.Sprintf("active=%t", u.IsActive))
}

func (c *cli) delete(ctx context.Context, args []string) error {
	id, err := c.requireID("delete", args)
	if err != nil {
		return err
	}
	ok, err := c.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	return c.report(ok, id, "deleted")
}

func (c *cli) totpEnable(ctx context.Context, args []string) error {
	fs := c.flagSet("totp-enable")
	id := fs.String("id", "", "user id")
	secret := fs.String("secret", "", "base32 secret (generated when empty)")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if *id == "" {
		fmt.Fprintln(c.stderr, "-id is required")
		return errUsage
	}

	u, ok := c.store.GetByID(ctx, *id)
	if !ok {
		return c.report(false, *id, "")
	}

	cfg := c.store.Config()
	if *secret == "" {
		gen, err := cfg.SecretGenerator()
		if err != nil {
			return err
		}
		if *secret, err = gen(); err != nil {
			return err
		}
	}

	ok, err := c.store.EnableTOTP(ctx, *id, *secret)
	if err != nil {
		return err
	}
	if !ok {
		return c.report(false, *id, "")
	}

	uriFn, err := cfg.URIGenerator()
	if err != nil {
		return err
	}
	uri, err := uriFn(*secret, cfg.Issuer(), u.Username)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "totp enabled for %s\ntotp uri: %s\n", u.Username, uri)
	return nil
}

func (c *cli) totpDisable(ctx context.Context, args []string) error {
	id, err := c.requireID("totp-disable", args)
	if err != nil {
		return err
	}
	ok, err := c.store.DisableTOTP(ctx, id)
	if err != nil {
		return err
	}
	return c.report(ok, id, "totp disabled")
}

func (c *cli) verify(ctx context.Context, args []string) error {
	fs := c.flagSet("verify")
	handle := fs.String("handle", "", "login handle")
	code := fs.String("code", "", "TOTP code to check after the password")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if *handle == "" {
		fmt.Fprintln(c.stderr, "-handle is required")
		return errUsage
	}

	pw, err := c.promptPassword("Password: ")
	if err != nil {
		return err
	}
	u, ok, err := c.store.VerifyPassword(ctx, *handle, pw)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("invalid credentials")
	}

	if u.TOTPEnabled || *code != "" {
		valid, err := c.store.VerifyTOTPCode(ctx, u.ID, strings.TrimSpace(*code))
		if err != nil {
			return err
		}
		if !valid {
			return errors.New("invalid credentials")
		}
	}

	fmt.Fprintf(c.stdout, "ok %s (%s)\n", u.Username, u.ID)
	if u.FirstLogin {
		fmt.Fprintln(c.stdout, "first-login setup required")
	}
	return nil
}

func (c *cli) backup(ctx context.Context, args []string) error {
	fs := c.flagSet("backup")
	out := fs.String("out", "", "destination path")
	if err := c.parse(fs, args); err != nil {
		return err
	}
	if *out == "" {
		fmt.Fprintln(c.stderr, "-out is required")
		return errUsage
	}
	if err := c.store.Backup(ctx, *out); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "backup written to %s\n", *out)
	return nil
}

func (c *cli) report(ok bool, id, msg string) error {
	if !ok {
		return fmt.Errorf("no user with id %q", id)
	}
	fmt.Fprintf(c.stdout, "%s: %s\n", id, msg)
	return nil
}
