package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/georoute/internal/geosite"
	"github.com/MrSnakeDoc/georoute/internal/policy"
)

type pacOptions struct {
	list       string
	categories []string
	proxy      string
	sites      []string
}

func newPACCmd() *cobra.Command {
	var opts pacOptions

	cmd := &cobra.Command{
		Use:   "pac",
		Short: "Compile a PAC script offline",
		Example: `  georoute pac --list dlc.dat -c YOUTUBE --proxy 10.0.0.1:3128
  georoute pac --site custom.net --proxy proxy.lan:8080:alice:secret`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return compilePAC(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.list, "list", "", "Domain list file")
	cmd.Flags().StringSliceVarP(&opts.categories, "category", "c", nil, "Category taken from the list (repeatable)")
	cmd.Flags().StringVar(&opts.proxy, "proxy", "", "Proxy as host:port[:user:pass]")
	cmd.Flags().StringSliceVar(&opts.sites, "site", nil, "Extra site routed through the proxy (repeatable)")
	_ = cmd.MarkFlagRequired("proxy")
	return cmd
}

// compilePAC writes the script to out. An unusable proxy string is reported
// on errOut and yields the all-DIRECT script.
func compilePAC(out, errOut io.Writer, opts pacOptions) error {
	var geo []string
	if opts.list != "" {
		if len(opts.categories) == 0 {
			return errors.New("--list needs at least one --category")
		}
		buf, err := os.ReadFile(opts.list)
		if err != nil {
			return fmt.Errorf("failed to read list: %w", err)
		}
		res, err := geosite.Decode(buf, opts.categories)
		if err != nil {
			return err
		}
		geo = geosite.HostDomains(res.Records)
	}

	cred, err := policy.ParseCredential(opts.proxy)
	if err != nil {
		fmt.Fprintf(errOut, "warning: %v; every host goes DIRECT\n", err)
		cred = nil
	}

	p := policy.Compile(policy.Input{
		GeoDomains: geo,
		UserSites:  opts.sites,
		Credential: cred,
		Enabled:    true,
	})
	if !p.Active() {
		fmt.Fprintf(errOut, "warning: policy inactive (%s)\n", p.Reason())
	}
	_, err = io.WriteString(out, p.Script())
	return err
}
