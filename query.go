package main

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
	"github.com/spf13/cobra"
)

func newQueryCmd() *cobra.Command {
	var (
		serverAddr string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query name [type]",
		Short: "Send a single query and print the response",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			qtype := dns.TypeA
			if len(args) == 2 {
				t, ok := dns.StringToType[strings.ToUpper(args[1])]
				if !ok {
					return fmt.Errorf("unknown query type %q", args[1])
				}
				qtype = t
			}

			if _, _, err := net.SplitHostPort(serverAddr); err != nil {
				serverAddr = net.JoinHostPort(serverAddr, "53")
			}

			req := new(dns.Msg)
			req.SetQuestion(dns.Fqdn(args[0]), qtype)

			c := &dns.Client{Net: "udp", Timeout: timeout}

			resp, rtt, err := c.Exchange(req, serverAddr)
			if err != nil {
				return fmt.Errorf("query %s: %w", serverAddr, err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.String())
			fmt.Fprintf(out, ";; Query time: %s\n;; SERVER: %s\n", rtt.Round(time.Microsecond), serverAddr)

			return nil
		},
	}

	cmd.Flags().StringVarP(&serverAddr, "server", "s", "127.0.0.1:53", "server to query")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "query timeout")

	return cmd
}
