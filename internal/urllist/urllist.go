package urllist

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Load reads the URL list from path, one URL per line, skipping blank lines.
// A missing or unreadable input file is returned as an error; the run cannot
// proceed without it.
func Load(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}

	return urls, nil
}

// Authority extracts the lowercased host[:port] from a URL string.
// Returns an empty string for relative or scheme-less URLs so callers can
// skip them.
func Authority(rawURL string) (string, error) {
	// Handle protocol-relative URLs
	if strings.HasPrefix(rawURL, "//") {
		rawURL = "https:" + rawURL
	}

	// Skip relative URLs (no scheme)
	if !strings.Contains(rawURL, "://") {
		return "", nil
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}

	if parsed.Host == "" {
		return "", nil
	}

	return strings.ToLower(parsed.Host), nil
}

// Authorities returns the unique authorities of the given URLs in first-seen
// order. Malformed entries are logged and skipped, not fatal.
func Authorities(urls []string) []string {
	seen := make(map[string]bool)
	var domains []string

	for _, u := range urls {
		domain, err := Authority(u)
		if err != nil {
			logrus.Errorf("Error parsing URL %s: %v", u, err)
			continue
		}
		if domain == "" {
			logrus.Warnf("URL has no authority, skipping: %s", u)
			continue
		}
		if seen[domain] {
			continue
		}
		seen[domain] = true
		domains = append(domains, domain)
	}

	return domains
}
