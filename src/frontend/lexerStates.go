package frontend

// lexGlobal starts the lexing process and serves as the default state.
func lexGlobal(l *lexer) stateFunc {
	for {
		r := l.next()
		switch {
		case isAlpha(r) || r == '_' || r == '$':
			// Keyword or identifier.
			return lexWord
		case isDigit(r) || (r == '-' && isDigit(l.peek())):
			// Number.
			return lexNumber
		case r == '\n':
			// Newline.
			l.emit(itemNewline)
			l.line++
			l.startOnLine = 1
		case isSpace(r):
			// Ignore whitespace. Newlines are caught before whitespaces.
			l.ignore()
		case r == ';':
			// Ignore comments up to, not including, the newline.
			for c := l.next(); c != '\n' && c != eof; c = l.next() {
			}
			l.backup()
			l.ignore()
		case r == '.':
			// Ellipsis.
			if !l.accept(".") || !l.accept(".") {
				return l.errorf("unexpected '.' at line %d:%d", l.line, l.startOnLine)
			}
			l.emit(itemEllipsis)
		case r == eof:
			// End of file: stop the state machine.
			l.emit(itemEOF)
			return nil
		case r < ' ' || r >= 0x7F:
			return l.errorf("unexpected character %q at line %d:%d", r, l.line, l.startOnLine)
		default:
			// Let parser use character as is.
			l.emit(itemType(r))
		}
	}
}

// lexWord scans the input string for keywords and identifiers. Identifiers may contain digits, '_', '$' and '.'
// after the first character.
func lexWord(l *lexer) stateFunc {
	// We know that the currently scanned rune starts a word.
	for {
		r := l.next()

		// Check if character is valid character.
		if !isAlpha(r) && !isDigit(r) && r != '_' && r != '$' && r != '.' {
			l.backup()
			kw, typ := isKeyword(l.input[l.start:l.pos])
			if kw {
				l.emit(typ)
			} else {
				l.emit(itemIdentifier)
			}
			return lexGlobal
		}
	}
}

// lexNumber scans the input stream for an integer or floating point number. Integers may be hexadecimal; floating
// point numbers have a fraction, an exponent or both.
func lexNumber(l *lexer) stateFunc {
	// We've scanned the first digit or the minus sign already.
	if l.input[l.start] == '-' {
		l.next()
	}
	digits := "0123456789"
	if l.input[l.pos-1] == '0' && l.accept("xX") {
		digits = "0123456789abcdefABCDEF"
		l.acceptRun(digits)
		l.emit(itemInteger)
		return lexGlobal
	}
	l.acceptRun(digits)

	typ := itemInteger
	if l.accept(".") {
		typ = itemFloat
		l.acceptRun(digits)
	}
	if l.accept("eE") {
		typ = itemFloat
		l.accept("+-")
		l.acceptRun(digits)
	}
	if r := l.peek(); isAlpha(r) || r == '_' {
		return l.errorf("malformed number %q at line %d:%d", l.input[l.start:l.pos+1], l.line, l.startOnLine)
	}
	l.emit(typ)
	return lexGlobal
}

// ----------------------------
// ----- Helper functions -----
// ----------------------------

// isAlpha return true if rune r is an alphabetic character in the set [a-zA-Z].
func isAlpha(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// isDigit return true if rune r is a digit in the range [0-9].
func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// isSpace return true if rune r is a whitespace character.
func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\f' || r == '\r'
}
