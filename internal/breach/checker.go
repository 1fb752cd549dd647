// Package breach checks passwords against the Have I Been Pwned range API
// using k-anonymity: only the first five hex characters of the SHA-1 leave
// the process and matching happens locally on the returned suffixes.
package breach

import (
	"bufio"
	"context"
	"crypto/sha1" //nolint:gosec // mandated by the range API, not used for secrecy
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ErlanBelekov/interview-genie/internal/domain"
	"github.com/ErlanBelekov/interview-genie/internal/metrics"
)

const prefixLen = 5

type Checker struct {
	baseURL string
	client  *http.Client
}

func NewChecker(baseURL string, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Checker{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// IsBreached reports whether password appears in the corpus. Any transport or
// protocol failure is returned wrapped in domain.ErrUpstream.
func (c *Checker) IsBreached(ctx context.Context, password string) (bool, error) {
	start := time.Now()
	breached, err := c.lookup(ctx, password)

	result := "clean"
	switch {
	case err != nil:
		result = "error"
	case breached:
		result = "breached"
	}
	metrics.BreachCheckDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())

	return breached, err
}

func (c *Checker) lookup(ctx context.Context, password string) (bool, error) {
	sum := sha1.Sum([]byte(password)) //nolint:gosec
	digest := strings.ToUpper(hex.EncodeToString(sum[:]))
	prefix, suffix := digest[:prefixLen], digest[prefixLen:]

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/range/"+prefix, nil)
	if err != nil {
		return false, fmt.Errorf("%w: build request: %v", domain.ErrUpstream, err)
	}
	req.Header.Set("Add-Padding", "true")
	req.Header.Set("User-Agent", "interview-genie")

	resp, err := c.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: breach range lookup: %v", domain.ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: breach range lookup: status %d", domain.ErrUpstream, resp.StatusCode)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		candidate, count, ok := strings.Cut(strings.TrimSpace(scanner.Text()), ":")
		if !ok || !strings.EqualFold(candidate, suffix) {
			continue
		}
		// padded responses carry decoy suffixes with a zero count
		n, err := strconv.Atoi(count)
		return err == nil && n > 0, nil
	}
	if err := scanner.Err(); err != nil {
		return false, fmt.Errorf("%w: read breach range: %v", domain.ErrUpstream, err)
	}
	return false, nil
}
