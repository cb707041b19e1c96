package security

import (
	"regexp"
	"strings"
)

// Decision classifies a command before execution.
type Decision int

const (
	// DecisionTrusted means the command matches a trusted prefix and may run
	// without interactive approval.
	DecisionTrusted Decision = iota
	// DecisionAsk means the command needs interactive approval.
	DecisionAsk
	// DecisionBlocked means the command must never run.
	DecisionBlocked
)

// GateResult is the outcome of gating a command.
type GateResult struct {
	Decision Decision
	Reason   string
}

// CommandGate decides whether a shell command runs immediately, requires
// approval, or is blocked outright. Trust is prefix-based; the blocklist
// always wins over the trust list.
type CommandGate struct {
	trustedPrefixes   []string
	blockedSubstrings []string
	blockedPatterns   []*regexp.Regexp
}

// NewCommandGate creates a gate with the given trusted command prefixes.
func NewCommandGate(trustedPrefixes []string) *CommandGate {
	return &CommandGate{
		trustedPrefixes: normalizePrefixes(trustedPrefixes),
		blockedSubstrings: []string{
			// Destructive filesystem operations
			"rm -rf /",
			"rm -rf /*",
			"rm -rf ~",
			"rm -rf $HOME",
			"rm -fr /",
			// Disk operations
			"mkfs.",
			"mkfs ",
			"> /dev/sda",
			"> /dev/nvme",
			"dd if=/dev/zero of=/dev/sd",
			"dd if=/dev/urandom of=/dev/sd",
			// Permission attacks
			"chmod -R 777 /",
			"chmod 777 /",
			// Reverse shells
			"nc -e",
			"ncat -e",
			"bash -i >& /dev/tcp",
			"/dev/tcp/",
			"/dev/udp/",
			// Sensitive file access
			"/etc/shadow",
			".ssh/id_rsa",
			".ssh/id_ed25519",
			".aws/credentials",
			".kube/config",
		},
		blockedPatterns: []*regexp.Regexp{
			// Fork bombs
			regexp.MustCompile(`:\s*\(\s*\)\s*\{`),
			regexp.MustCompile(`\$\{?0\}?\s*[&|]\s*\$\{?0\}?`),
			regexp.MustCompile(`\byes\s*\|\s*sh`),
			// Piping downloads straight into a shell
			regexp.MustCompile(`(?i)(curl|wget)[^|;]*\|\s*(ba)?sh`),
		},
	}
}

// Check classifies a command.
func (g *CommandGate) Check(command string) GateResult {
	trimmed := strings.TrimSpace(command)
	if trimmed == "" {
		return GateResult{Decision: DecisionBlocked, Reason: "empty command"}
	}

	lower := strings.ToLower(trimmed)
	for _, sub := range g.blockedSubstrings {
		if strings.Contains(lower, strings.ToLower(sub)) {
			return GateResult{Decision: DecisionBlocked, Reason: "matches blocked pattern: " + sub}
		}
	}
	for _, re := range g.blockedPatterns {
		if re.MatchString(trimmed) {
			return GateResult{Decision: DecisionBlocked, Reason: "matches blocked pattern: " + re.String()}
		}
	}

	if g.isTrusted(trimmed) {
		return GateResult{Decision: DecisionTrusted}
	}
	return GateResult{Decision: DecisionAsk, Reason: "command is not on the trusted list"}
}

// isTrusted reports whether the command starts with a trusted prefix on a
// token boundary: "go test ./..." matches prefix "go test", "go testx" does not.
func (g *CommandGate) isTrusted(command string) bool {
	for _, prefix := range g.trustedPrefixes {
		if command == prefix {
			return true
		}
		if strings.HasPrefix(command, prefix+" ") {
			return true
		}
	}
	return false
}

// AddTrusted appends a prefix to the trust list.
func (g *CommandGate) AddTrusted(prefix string) {
	prefix = strings.TrimSpace(prefix)
	if prefix != "" {
		g.trustedPrefixes = append(g.trustedPrefixes, prefix)
	}
}

func normalizePrefixes(prefixes []string) []string {
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
