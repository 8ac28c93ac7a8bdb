/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package websocket

// utf8State is the validator's running state: accept, reject, or one
// of the "N more continuation bytes expected" intermediate states.
type utf8State uint8

const (
	utf8Accept utf8State = iota
	utf8Reject
	utf8Need1 // one more continuation byte expected
	utf8Need2 // two more continuation bytes expected, first already in [general 0x80-0xBF]
	utf8Need3
)

// step advances the state machine by one input byte, per the
// well-known DFA shape for UTF-8 validation (reject overlong/surrogate
// encodings by constraining the first continuation byte's range per
// leading-byte class, not just "is it 0x80-0xBF").
func step(state utf8State, b byte) utf8State {
	switch state {
	case utf8Accept:
		switch {
		case b < 0x80:
			return utf8Accept
		case b>>5 == 0x6: // 110xxxxx
			if b < 0xC2 { // overlong 2-byte encoding
				return utf8Reject
			}
			return utf8Need1
		case b>>4 == 0xE: // 1110xxxx
			return utf8Need2
		case b>>3 == 0x1E: // 11110xxx
			if b > 0xF4 {
				return utf8Reject
			}
			return utf8Need3
		default:
			return utf8Reject
		}
	case utf8Need1:
		if b>>6 == 0x2 { // 10xxxxxx
			return utf8Accept
		}
		return utf8Reject
	case utf8Need2:
		if b>>6 == 0x2 {
			return utf8Need1
		}
		return utf8Reject
	case utf8Need3:
		if b>>6 == 0x2 {
			return utf8Need2
		}
		return utf8Reject
	}
	return utf8Reject
}

// ValidUTF8 validates data as (a prefix of, unless final) a UTF-8
// byte sequence. When final is false, an incomplete trailing
// codepoint (state != Accept at end of input) is permitted — §4.13's
// "incomplete codepoints at frame boundaries are permitted only when
// more frames are expected." When final is true, the state must have
// returned to Accept by the end.
func ValidUTF8(data []byte, final bool) bool {
	_, ok := ValidateUTF8Stream(utf8Accept, data, final)
	return ok
}

// ValidateUTF8Stream runs the state machine across data starting from
// state (CarryState() from a previous call for multi-frame text
// messages), returning the new carry state and whether the sequence
// validated so far.
func ValidateUTF8Stream(state utf8State, data []byte, final bool) (utf8State, bool) {
	for _, b := range data {
		state = step(state, b)
		if state == utf8Reject {
			return state, false
		}
	}

	if final && state != utf8Accept {
		return state, false
	}

	return state, true
}

// CarryState is the zero (Accept) state a fresh text-message
// validator starts from.
func CarryState() utf8State { return utf8Accept }
