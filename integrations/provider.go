package integrations

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/quailyquaily/trustops/fault"
)

var awsAccountID = regexp.MustCompile(`^[0-9]{12}$`)

// ParseConfig validates raw connect input for the provider. It never touches
// the codec; callers seal AccessToken afterwards.
func ParseConfig(p Provider, raw map[string]any) (Config, error) {
	switch p {
	case ProviderGitHub:
		return parseGitHub(raw)
	case ProviderAWS:
		return parseAWS(raw)
	}
	return Config{}, fmt.Errorf("provider %q: %w", p, fault.ErrInvalidInput)
}

func parseGitHub(raw map[string]any) (Config, error) {
	var missing []string
	token, err := stringField(raw, "accessToken")
	if err != nil {
		return Config{}, err
	}
	if token == "" {
		missing = append(missing, "accessToken")
	}
	org, err := stringField(raw, "org")
	if err != nil {
		return Config{}, err
	}
	if org == "" {
		missing = append(missing, "org")
	}
	repos, err := stringListField(raw, "repos")
	if err != nil {
		return Config{}, err
	}
	if len(repos) == 0 {
		missing = append(missing, "repos")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("github config: missing %s: %w", strings.Join(missing, ", "), fault.ErrInvalidInput)
	}
	return Config{AccessToken: token, Org: org, Repos: repos}, nil
}

func parseAWS(raw map[string]any) (Config, error) {
	fields := map[string]string{}
	var missing []string
	for _, k := range []string{"roleArn", "externalId", "region", "accountId"} {
		v, err := stringField(raw, k)
		if err != nil {
			return Config{}, err
		}
		if v == "" {
			missing = append(missing, k)
		}
		fields[k] = v
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("aws config: missing %s: %w", strings.Join(missing, ", "), fault.ErrInvalidInput)
	}
	if !strings.HasPrefix(fields["roleArn"], "arn:") {
		return Config{}, fmt.Errorf("aws config: roleArn %q is not an ARN: %w", fields["roleArn"], fault.ErrInvalidInput)
	}
	if !awsAccountID.MatchString(fields["accountId"]) {
		return Config{}, fmt.Errorf("aws config: accountId must be 12 digits: %w", fault.ErrInvalidInput)
	}
	return Config{
		RoleARN:    fields["roleArn"],
		ExternalID: fields["externalId"],
		Region:     fields["region"],
		AccountID:  fields["accountId"],
	}, nil
}

func stringField(raw map[string]any, key string) (string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("field %s must be a string, got %T: %w", key, v, fault.ErrInvalidInput)
	}
	return strings.TrimSpace(s), nil
}

func stringListField(raw map[string]any, key string) ([]string, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	var items []any
	switch t := v.(type) {
	case []string:
		for _, s := range t {
			items = append(items, s)
		}
	case []any:
		items = t
	default:
		return nil, fmt.Errorf("field %s must be a list of strings, got %T: %w", key, v, fault.ErrInvalidInput)
	}
	out := make([]string, 0, len(items))
	for i, it := range items {
		s, ok := it.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("field %s[%d] must be a non-empty string: %w", key, i, fault.ErrInvalidInput)
		}
		out = append(out, strings.TrimSpace(s))
	}
	return out, nil
}
