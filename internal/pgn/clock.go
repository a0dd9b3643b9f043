package pgn

import (
	"regexp"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	clockDirective = regexp.MustCompile(`\[?%clk\s*([^\]\s})]*)\]?`)
	anyDirective   = regexp.MustCompile(`\[%[^\]]*\]?`)
	clockValue     = regexp.MustCompile(`^\d{1,3}(:\d{1,2}){0,2}(\.\d+)?$`)
	moveNumber     = regexp.MustCompile(`^(\d+)(\.+)(.*)$`)
	nagToken       = regexp.MustCompile(`^\$\d+$`)

	commentBraces = strings.NewReplacer("{", " ", "}", " ")
)

const clockCommand = "clk"

// StripClocks removes inline clock annotations from movetext.
// clocks[i] is the clock recorded after ply i; a ply without one keeps "" so
// later plies never shift. Malformed annotations are dropped without error.
func StripClocks(movetext string) (string, []string) {
	n := normalize(movetext)
	var clocks []string
	if game, err := decode(n.text()); err == nil {
		clocks = mainlineClocks(game.Moves())
	}
	return n.clean(), clocks
}

// normalized is movetext rewritten so every clock sits in a standard
// {[%clk …]} comment right after its move and every comment is closed.
type normalized struct {
	tokens []string
	clock  []bool
}

func (n *normalized) text() string {
	return strings.Join(n.tokens, " ")
}

func (n *normalized) clean() string {
	out := make([]string, 0, len(n.tokens))
	for i, tok := range n.tokens {
		if n.clock[i] || strings.HasPrefix(tok, "[") {
			continue
		}
		out = append(out, tok)
	}
	return strings.Join(out, " ")
}

type normalizer struct {
	normalized
	depth int
	// 수 하나에 시계는 첫 번째 것만.
	clocked bool
}

func normalize(text string) *normalized {
	s := &normalizer{clocked: true}
	n := len(text)
	for i := 0; i < n; {
		c := text[i]
		switch {
		case isSpace(c):
			i++
		case c == '{':
			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				// 닫히지 않은 주석은 끝까지 주석으로 본다.
				s.comment(text[i+1:])
				i = n
				continue
			}
			s.comment(text[i+1 : i+1+end])
			i += end + 2
		case c == ';':
			end := strings.IndexByte(text[i:], '\n')
			if end < 0 {
				end = n - i
			}
			s.comment(text[i+1 : i+end])
			i += end
		case c == '[' && nextIs(text[i+1:], '%'):
			end := strings.IndexByte(text[i:], ']')
			if end < 0 {
				s.comment(text[i:])
				i = n
				continue
			}
			s.comment(text[i : i+end+1])
			i += end + 1
		case c == '[':
			i += s.tag(text[i:])
		case c == '(' && nextIs(text[i+1:], '%'):
			end := strings.IndexByte(text[i:], ')')
			if end < 0 {
				s.comment(text[i+1:])
				i = n
				continue
			}
			s.comment(text[i+1 : i+end])
			i += end + 1
		case c == '(':
			s.depth++
			s.emit("(", false)
			i++
		case c == ')':
			if s.depth > 0 {
				s.depth--
				s.emit(")", false)
			}
			i++
		case c == '}' || c == ']':
			i++
		default:
			j := i
			for j < n && !isSpace(text[j]) && !isDelimiter(text[j]) {
				j++
			}
			s.word(text[i:j])
			i = j
		}
	}
	return &s.normalized
}

func (s *normalizer) emit(tok string, clock bool) {
	s.tokens = append(s.tokens, tok)
	s.clock = append(s.clock, clock)
}

// comment keeps the first valid clock of body for the current move and
// re-emits any remaining text as a plain comment.
func (s *normalizer) comment(body string) {
	for _, m := range clockDirective.FindAllStringSubmatch(body, -1) {
		s.attachClock(m[1])
	}
	rest := clockDirective.ReplaceAllString(body, " ")
	rest = anyDirective.ReplaceAllString(rest, " ")
	rest = strings.Join(strings.Fields(commentBraces.Replace(rest)), " ")
	if rest != "" {
		s.emit("{"+rest+"}", false)
	}
}

func (s *normalizer) attachClock(value string) {
	value = strings.TrimSpace(value)
	if s.clocked || s.depth > 0 || !clockValue.MatchString(value) {
		return
	}
	s.clocked = true
	s.emit("{[%"+clockCommand+" "+value+"]}", true)
}

// tag copies one [Key "value"] pair and returns the bytes consumed.
func (s *normalizer) tag(text string) int {
	quoted := false
	for i := 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			if quoted {
				i++
			}
		case '"':
			quoted = !quoted
		case ']':
			if !quoted {
				s.emit(strings.Join(strings.Fields(text[:i+1]), " "), false)
				return i + 1
			}
		}
	}
	return len(text)
}

func (s *normalizer) word(tok string) {
	if tok == "" || strings.HasPrefix(tok, "%") {
		return
	}
	if m := moveNumber.FindStringSubmatch(tok); m != nil {
		s.emit(m[1]+m[2], false)
		s.word(m[3])
		return
	}
	switch tok {
	case "½-½":
		tok = "1/2-1/2"
	case "0-0", "0-0+", "0-0#":
		tok = "O-O" + tok[3:]
	case "0-0-0", "0-0-0+", "0-0-0#":
		tok = "O-O-O" + tok[5:]
	}
	s.emit(tok, false)
	if isResult(tok) || nagToken.MatchString(tok) {
		return
	}
	if s.depth == 0 {
		s.clocked = false
	}
}

// mainlineClocks reads the clk command of every move, trimming trailing
// empty slots.
func mainlineClocks(moves []*nchess.Move) []string {
	clocks := make([]string, len(moves))
	end := 0
	for i, mv := range moves {
		v, ok := mv.GetCommand(clockCommand)
		if !ok || !clockValue.MatchString(strings.TrimSpace(v)) {
			continue
		}
		clocks[i] = strings.TrimSpace(v)
		end = i + 1
	}
	if end == 0 {
		return nil
	}
	return clocks[:end]
}

func nextIs(text string, want byte) bool {
	t := strings.TrimLeft(text, " \t")
	return t != "" && t[0] == want
}

func isResult(tok string) bool {
	switch tok {
	case "1-0", "0-1", "1/2-1/2", "*":
		return true
	}
	return false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDelimiter(c byte) bool {
	switch c {
	case '{', '}', ';', '[', ']', '(', ')':
		return true
	}
	return false
}
