package lexer

import "testing"

func TestNextTokenizesPunctuationAndKeywords(t *testing.T) {
	input := `class Box < A { init(v) { this.v = v; } }`

	l := New(input)
	var got []TokenType
	for {
		tok := l.Next()
		got = append(got, tok.Type)
		if tok.Type == TokenEOF {
			break
		}
	}

	want := []TokenType{
		TokenClass, TokenIdentifier, TokenLess, TokenIdentifier, TokenLBrace,
		TokenIdentifier, TokenLParen, TokenIdentifier, TokenRParen, TokenLBrace,
		TokenThis, TokenDot, TokenIdentifier, TokenEqual, TokenIdentifier, TokenSemicolon,
		TokenRBrace, TokenRBrace, TokenEOF,
	}
	if len(got) != len(want) {
		t.Fatalf("token count = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestNextTokenizesNumbersAndStrings(t *testing.T) {
	l := New(`42 3.14 "hello"`)

	num1 := l.Next()
	if num1.Type != TokenNumber || num1.Literal != "42" {
		t.Errorf("got %v %q, want NUMBER 42", num1.Type, num1.Literal)
	}
	num2 := l.Next()
	if num2.Type != TokenNumber || num2.Literal != "3.14" {
		t.Errorf("got %v %q, want NUMBER 3.14", num2.Type, num2.Literal)
	}
	str := l.Next()
	if str.Type != TokenString || str.Literal != "hello" {
		t.Errorf("got %v %q, want STRING hello", str.Type, str.Literal)
	}
}

func TestNextSkipsLineComments(t *testing.T) {
	l := New("1 // a comment\n+ 2")
	types := []TokenType{TokenNumber, TokenPlus, TokenNumber, TokenEOF}
	for i, want := range types {
		if got := l.Next().Type; got != want {
			t.Errorf("token[%d] = %v, want %v", i, got, want)
		}
	}
}

func TestNextTracksLineNumbers(t *testing.T) {
	l := New("1\n2\n3")
	for i := 1; i <= 3; i++ {
		tok := l.Next()
		if tok.Line != i {
			t.Errorf("token %d: line = %d, want %d", i, tok.Line, i)
		}
	}
}

func TestNextReportsUnterminatedString(t *testing.T) {
	l := New(`"unterminated`)
	tok := l.Next()
	if tok.Type != TokenIllegal {
		t.Errorf("got %v, want ILLEGAL", tok.Type)
	}
}
