package audit

import (
	"regexp"
	"slices"

	"github.com/sprite-ai/reviewgate/internal/diff"
	"github.com/sprite-ai/reviewgate/internal/model"
)

// Schema and migration files.
var schemaFiles = []*regexp.Regexp{
	regexp.MustCompile(`(?i)migrat`),
	regexp.MustCompile(`(?i)schema`),
	regexp.MustCompile(`\.proto$`),
	regexp.MustCompile(`(?i)(openapi|swagger)\.(ya?ml|json)$`),
	regexp.MustCompile(`(?i)\.graphql$`),
	regexp.MustCompile(`\.prisma$`),
}

// SQL DDL in added lines.
var ddl = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(CREATE|ALTER|DROP)\s+(TABLE|INDEX|VIEW|SCHEMA|DATABASE|TYPE|SEQUENCE)\b`),
	regexp.MustCompile(`(?i)\b(ADD|DROP|MODIFY|RENAME)\s+COLUMN\b`),
	regexp.MustCompile(`(?i)\bRENAME\s+TABLE\b`),
}

// Security-sensitive code in added lines.
var securityCode = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(password|credential|jwt|oauth|bcrypt|argon2|scrypt|pbkdf2)\b`),
	regexp.MustCompile(`(?i)(private.?key|secret.?key|signing.?key|api.?key)`),
	regexp.MustCompile(`(?i)\b(encrypt|decrypt|hmac|cipher)\w*`),
	regexp.MustCompile(`(?i)(access.?control|rbac|authoriz|is.?admin)`),
}

// surfaceDiscrepancies flags schema and security work the plan did not
// mention.
func surfaceDiscrepancies(p *model.ImplementationPlan, ds *diff.DiffSet) []Discrepancy {
	var schema, security []string
	for _, f := range ds.Files {
		name := f.Name()
		added := f.AddedText()
		if matchesAny(schemaFiles, name) || anyLine(ddl, added) {
			schema = append(schema, name)
		}
		if anyLine(securityCode, added) {
			security = append(security, name)
		}
	}

	var out []Discrepancy
	if len(schema) > 0 && !p.HasSchemaChanges() {
		out = append(out, Discrepancy{
			Kind:     KindSchema,
			Severity: SeverityMedium,
			Message:  "Schema changes not mentioned in plan",
			Items:    uniqueSorted(schema),
		})
	}
	if len(security) > 0 && !p.HasSecurityKeywords() {
		out = append(out, Discrepancy{
			Kind:     KindSecurity,
			Severity: SeverityMedium,
			Message:  "Security-sensitive code not mentioned in plan",
			Items:    uniqueSorted(security),
		})
	}
	return out
}

func matchesAny(pats []*regexp.Regexp, s string) bool {
	return slices.ContainsFunc(pats, func(p *regexp.Regexp) bool { return p.MatchString(s) })
}

func anyLine(pats []*regexp.Regexp, lines []string) bool {
	return slices.ContainsFunc(lines, func(l string) bool { return matchesAny(pats, l) })
}

func uniqueSorted(s []string) []string {
	slices.Sort(s)
	return slices.Compact(s)
}
