package guild

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/vietddude/guildwatch/internal/core/domain"
)

// bpJSON is the subset of the topology document the validator reads.
type bpJSON struct {
	ProducerAccountName string `json:"producer_account_name"`
	Org                 org    `json:"org"`
	Nodes               []node `json:"nodes"`
}

type org struct {
	CandidateName       string         `json:"candidate_name"`
	Website             string         `json:"website"`
	CodeOfConduct       string         `json:"code_of_conduct"`
	OwnershipDisclosure string         `json:"ownership_disclosure"`
	Email               string         `json:"email"`
	GithubUser          stringList     `json:"github_user"`
	Branding            branding       `json:"branding"`
	Location            *location      `json:"location"`
	Social              map[string]any `json:"social"`
}

type branding struct {
	Logo256  string `json:"logo_256"`
	Logo1024 string `json:"logo_1024"`
	LogoSVG  string `json:"logo_svg"`
}

type location struct {
	Name      string    `json:"name"`
	Country   string    `json:"country"`
	Latitude  flexFloat `json:"latitude"`
	Longitude flexFloat `json:"longitude"`
}

func (l *location) toDomain() *domain.Location {
	if l == nil {
		return nil
	}
	return &domain.Location{
		Name:      l.Name,
		Country:   l.Country,
		Latitude:  float64(l.Latitude),
		Longitude: float64(l.Longitude),
	}
}

type node struct {
	NodeType    stringList `json:"node_type"`
	APIEndpoint string     `json:"api_endpoint"`
	SSLEndpoint string     `json:"ssl_endpoint"`
	P2PEndpoint string     `json:"p2p_endpoint"`
	Location    *location  `json:"location"`
	Features    []string   `json:"features"`
}

func (n *node) is(nodeType string) bool {
	for _, t := range n.NodeType {
		if strings.EqualFold(t, nodeType) {
			return true
		}
	}
	return false
}

func (n *node) endpoints() []string {
	var out []string
	for _, e := range []string{n.APIEndpoint, n.SSLEndpoint} {
		if e = strings.TrimSpace(e); e != "" {
			out = append(out, e)
		}
	}
	return out
}

// stringList accepts a string or an array of strings.
type stringList []string

func (s *stringList) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		if one == "" {
			*s = nil
		} else {
			*s = stringList{one}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected string or array of strings: %w", err)
	}
	*s = many
	return nil
}

// flexFloat accepts a number or a numeric string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number: %w", err)
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("expected number: %w", err)
	}
	*f = flexFloat(n)
	return nil
}
