package enrich

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"go.uber.org/zap"
)

// EmailVerifier decides whether an extracted address is deliverable enough
// to keep.
type EmailVerifier interface {
	Verify(ctx context.Context, email string) bool
}

// MXVerifier accepts addresses whose domain publishes MX records. Results
// are cached per domain for the life of the verifier.
type MXVerifier struct {
	servers []string
	client  *dns.Client

	mu    sync.Mutex
	cache map[string]bool
}

// NewMXVerifier creates a verifier that queries servers ("host:port") in order.
func NewMXVerifier(servers []string, timeout time.Duration) *MXVerifier {
	if len(servers) == 0 {
		servers = []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &MXVerifier{
		servers: servers,
		client:  &dns.Client{Timeout: timeout},
		cache:   make(map[string]bool),
	}
}

// Verify implements EmailVerifier.
func (v *MXVerifier) Verify(ctx context.Context, email string) bool {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return false
	}
	domain := strings.ToLower(strings.TrimSpace(email[at+1:]))

	v.mu.Lock()
	if ok, hit := v.cache[domain]; hit {
		v.mu.Unlock()
		return ok
	}
	v.mu.Unlock()

	ok := v.lookup(ctx, domain)

	v.mu.Lock()
	v.cache[domain] = ok
	v.mu.Unlock()
	return ok
}

func (v *MXVerifier) lookup(ctx context.Context, domain string) bool {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(domain), dns.TypeMX)
	msg.RecursionDesired = true

	for _, server := range v.servers {
		resp, _, err := v.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			zap.L().Debug("enrich: mx lookup failed",
				zap.String("domain", domain),
				zap.String("server", server),
				zap.Error(err),
			)
			continue
		}
		if resp == nil {
			continue
		}
		if resp.Rcode == dns.RcodeSuccess {
			for _, rr := range resp.Answer {
				if _, ok := rr.(*dns.MX); ok {
					return true
				}
			}
			return false
		}
		if resp.Rcode == dns.RcodeNameError {
			return false
		}
	}
	return false
}
