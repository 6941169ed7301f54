package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/canopyhq/canopy"
	"github.com/canopyhq/canopy/pkg/job"
	"github.com/canopyhq/canopy/pkg/session"
	"github.com/canopyhq/canopy/pkg/storage"
)

var errBadField = errors.New("canopy: form fields must be key=value")

var execCmd = &cobra.Command{
	Use:   "exec <mode>",
	Short: "Dispatch one mode and print the response",
	Long: `Runs a single mode through the dispatcher without opening a listener.
With --user the request signs in first, so protected units and POST-only
methods work exactly as they do over HTTP.`,
	Example: `  canopy exec --user root "user.response:children(1)"
  canopy exec --user root --form uname=alice --form upass=secret123 \
      --form retype=secret123 user.receive:save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := open(cmd)
		if err != nil {
			return err
		}
		defer s.close()

		flags := cmd.Flags()
		uname, _ := flags.GetString("user")
		password, _ := flags.GetString("password")
		if password == "" {
			password = os.Getenv("CANOPY_PASSWORD")
		}
		fields, _ := flags.GetStringArray("form")

		req, err := execRequest(cmd.Context(), args[0], uname, password, fields)
		if err != nil {
			return err
		}

		_, d, err := mount(s.cfg, s.users, canopy.WithAuthenticator(s.users), canopy.WithLoginDelay(0))
		if err != nil {
			return err
		}
		// Enqueue only: workers belong to serve.
		enqueuer, err := job.NewManager(s.pool, job.WithLogger(s.log))
		if err != nil {
			return err
		}
		opts := []canopy.Option{
			canopy.WithLogger(s.log),
			canopy.WithSession(session.NewMemoryStore()),
			canopy.WithJobEnqueuer(enqueuer),
			canopy.WithHandlers(d),
		}
		if s.cfg.Storage.Enabled() {
			files, err := storage.New(s.cfg.Storage)
			if err != nil {
				return err
			}
			opts = append(opts, canopy.WithStorage(files))
		}

		return dispatch(canopy.New(opts...), req, cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().StringP("user", "u", "", "sign in as this user")
	execCmd.Flags().StringP("password", "p", "", "password (default $CANOPY_PASSWORD)")
	execCmd.Flags().StringArrayP("form", "f", nil, "extra form field as key=value, repeatable")
}

// execRequest builds the request exec dispatches. Signing in or sending
// form fields makes it a POST; otherwise it is a GET carrying the mode.
func execRequest(ctx context.Context, m, uname, password string, fields []string) (*http.Request, error) {
	form := url.Values{"mode": {m}}
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q", errBadField, f)
		}
		form.Add(k, v)
	}

	if uname == "" && len(fields) == 0 {
		return httptest.NewRequestWithContext(ctx, http.MethodGet, "/?"+form.Encode(), nil), nil
	}
	if uname != "" {
		form.Set("uname", uname)
		form.Set("upass", password)
	}
	req := httptest.NewRequestWithContext(ctx, http.MethodPost, "/", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// dispatch serves req and copies the body to w. Redirects print their
// target. Statuses of 400 and above are returned as errors.
func dispatch(h http.Handler, req *http.Request, w io.Writer) error {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if loc := rec.Header().Get("Location"); loc != "" && rec.Code >= 300 && rec.Code < 400 {
		fmt.Fprintln(w, loc)
		return nil
	}
	if _, err := io.Copy(w, rec.Body); err != nil {
		return err
	}
	if rec.Code >= http.StatusBadRequest {
		return fmt.Errorf("%s %s", req.Method, http.StatusText(rec.Code))
	}
	return nil
}
