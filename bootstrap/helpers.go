package bootstrap

import (
	"errors"
	"fmt"
	"net"
	"syscall"

	"mongograph/storage"
)

// ClassifyConnectionError provides specific error messages based on the type of
// MongoDB connection failure. target should already be redacted.
func ClassifyConnectionError(err error, target string) string {
	if err == nil {
		return ""
	}

	errStr := err.Error()

	if target == "(empty)" || target == "" {
		return "No MongoDB connection target is configured.\n" +
			"  Remediation:\n" +
			"  - Set MONGO_URI, e.g. MONGO_URI=mongodb://localhost:27017\n" +
			"  - Or set mongodb.uri in config.yaml"
	}

	if containsIgnoreCase(errStr, "error parsing uri") || containsIgnoreCase(errStr, "scheme must be") {
		return fmt.Sprintf("The MongoDB connection target %s could not be parsed.\n"+
			"  Remediation:\n"+
			"  - Use the form mongodb://[user:pass@]host[:port][/database][?options]\n"+
			"  - Or mongodb+srv://host/database for DNS seed lists\n"+
			"  - URL-encode special characters in the username and password", target)
	}

	if errors.Is(err, storage.ErrConnectTimeout) {
		return fmt.Sprintf("Connection to MongoDB at %s timed out.\n"+
			"  Possible causes:\n"+
			"  - MongoDB is starting up (wait and retry)\n"+
			"  - Network latency or firewall blocking the connection\n"+
			"  - The replica set has no reachable primary\n"+
			"  Remediation:\n"+
			"  - Check if MongoDB is running: docker ps | grep mongo\n"+
			"  - Raise mongodb.connect_timeout if the server is slow to answer", target)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Sprintf("Network timeout talking to MongoDB at %s.\n"+
			"  Remediation:\n"+
			"  - Verify network connectivity to the server\n"+
			"  - Check firewall rules for port 27017", target)
	}

	var opErr *net.OpError
	if (errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED)) ||
		containsIgnoreCase(errStr, "connection refused") ||
		containsIgnoreCase(errStr, "actively refused") {
		return fmt.Sprintf("Connection refused by MongoDB at %s.\n"+
			"  This usually means MongoDB is not running.\n"+
			"  Remediation:\n"+
			"  - Start MongoDB: docker compose up -d mongo\n"+
			"  - Verify the host and port in MONGO_URI", target)
	}

	if containsIgnoreCase(errStr, "no such host") || containsIgnoreCase(errStr, "lookup") {
		return fmt.Sprintf("Cannot resolve hostname in MongoDB target %s.\n"+
			"  Remediation:\n"+
			"  - Verify the hostname is correct\n"+
			"  - Check DNS configuration (SRV records for mongodb+srv)\n"+
			"  - Try using IP address (127.0.0.1) instead of hostname", target)
	}

	if containsIgnoreCase(errStr, "authentication") || containsIgnoreCase(errStr, "auth error") || containsIgnoreCase(errStr, "unauthorized") {
		return fmt.Sprintf("Authentication failed for MongoDB at %s.\n"+
			"  Remediation:\n"+
			"  - Verify the username and password in MONGO_URI\n"+
			"  - Check authSource points at the database holding the user", target)
	}

	return fmt.Sprintf("Failed to connect to MongoDB at %s: %v\n"+
		"  Remediation:\n"+
		"  - Ensure MongoDB is running and accessible\n"+
		"  - Check the MONGO_URI setting\n"+
		"  - Verify network connectivity", target, err)
}

// containsIgnoreCase checks if a string contains a substring (case-insensitive).
func containsIgnoreCase(s, substr string) bool {
	if len(substr) == 0 {
		return true
	}
	if len(s) < len(substr) {
		return false
	}
	for i := 0; i <= len(s)-len(substr); i++ {
		if equalFoldAt(s, substr, i) {
			return true
		}
	}
	return false
}

func equalFoldAt(s, substr string, start int) bool {
	for i := 0; i < len(substr); i++ {
		c1, c2 := s[start+i], substr[i]
		if c1 == c2 {
			continue
		}
		if 'A' <= c1 && c1 <= 'Z' {
			c1 += 'a' - 'A'
		}
		if 'A' <= c2 && c2 <= 'Z' {
			c2 += 'a' - 'A'
		}
		if c1 != c2 {
			return false
		}
	}
	return true
}
