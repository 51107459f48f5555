package comments

import (
	"strings"
	"unicode"
)

// ReplyTarget is the comment a reply is addressed to.
type ReplyTarget struct {
	ID   string
	Name string
}

// Composer is the text box under a thread. It is used from the UI loop only.
type Composer struct {
	text   string
	target *ReplyTarget
	err    error
}

// Text returns the current input.
func (c *Composer) Text() string {
	return c.text
}

// Target returns the reply target, or nil.
func (c *Composer) Target() *ReplyTarget {
	if c.target == nil {
		return nil
	}
	t := *c.target
	return &t
}

// Err is the validation error of the last Submit.
func (c *Composer) Err() error {
	return c.err
}

// Reply addresses the next comment to id and prefills "@name ".
func (c *Composer) Reply(id, name string) {
	c.target = &ReplyTarget{ID: id, Name: name}
	c.text = "@" + name + " "
	c.err = nil
}

// SetText replaces the input. Clearing it also clears the reply target.
func (c *Composer) SetText(text string) {
	c.text = text
	c.err = nil
	if text == "" {
		c.target = nil
	}
}

// Submit sends the input to t. The input and reply target are cleared only
// when the comment was accepted.
func (c *Composer) Submit(t *Thread) error {
	var replyID string
	if c.target != nil {
		replyID = c.target.ID
	}
	if err := t.Send(c.text, replyID); err != nil {
		c.err = err
		return err
	}
	c.text = ""
	c.target = nil
	c.err = nil
	return nil
}

// Mention splits a leading "@name" from text. ok is false when text does not
// start with a mention.
func Mention(text string) (name, rest string, ok bool) {
	if !strings.HasPrefix(text, "@") {
		return "", text, false
	}
	end := strings.IndexFunc(text[1:], unicode.IsSpace)
	if end < 0 {
		end = len(text) - 1
	}
	if end == 0 {
		return "", text, false
	}
	return text[1 : end+1], text[end+1:], true
}
