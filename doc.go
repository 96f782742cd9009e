/*
Package main implements dnsredir, a small DNS server that answers selected
names locally and forwards every other query to an upstream resolver.

A query for an A record whose name matches one of the configured rules is
answered directly with the rule's address. Any other query is forwarded to
the upstream server under a fresh transaction id, and the upstream response
is returned to the client that asked with its original id restored.
Forwarded queries that get no response within the session timeout are
forgotten.

Architecture:

Every received datagram is decoded and handed to a chain of middleware.
The middleware order is important and defined as:

 1. Recovery - Panic containment, the datagram is dropped
 2. Metrics - Prometheus counters per query type and outcome
 3. AccessList - IP-based access control for queries
 4. RateLimit - Query rate limiting per client
 5. AccessLog - Query logging
 6. Answer - Local answers from the rules
 7. Proxy - Upstream forwarding and response relay

Configuration:

dnsredir uses a configuration file (default: dnsredir.conf) that supports:

  - Server binding address, port and IPv6 socket
  - Upstream server address and port
  - Rules and the TTL of local answers
  - Session timeout and number of workers
  - Access list, rate limit and access log
  - Logging level and HTTP API address

Usage:

	dnsredir [flags] [type:name:value ...]
	dnsredir [command]

Available Commands:

	help        Help about any command
	query       Send a single query and print the response

Flags:

	-b, --bind string          address to bind to (default any)
	-c, --config string        location of the config file (default "dnsredir.conf")
	-6, --ipv6                 serve on an IPv6 socket
	-p, --port int             port to listen on (default 53)
	-q, --quiet                only log errors
	-t, --ttl uint32           TTL of locally answered records (default 30)
	-d, --upstream string      upstream DNS server address (default 8.8.8.8)
	-P, --upstreamport int     upstream DNS server port (default 53)

Example:

	# Answer host.example. locally, forward everything else to 9.9.9.9
	dnsredir -d 9.9.9.9 'A:host\.example\.:10.0.0.5'

	# Query it
	dnsredir query -s 127.0.0.1 host.example
*/
package main // import "github.com/semihalev/dnsredir"
