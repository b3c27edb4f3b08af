package telephony

import (
	"bytes"
	"encoding/xml"
)

// TwiML call-control document builder.
// It intentionally avoids the provider SDK's markup helpers: the webhook
// response is the one place where the wire format must stay inspectable, and
// the verb set we emit is small.
//
// Only include primitives the inbound flows need.

type Document struct {
	verbs []any
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlDial struct {
	XMLName xml.Name `xml:"Dial"`
	Timeout int      `xml:"timeout,attr,omitempty"`
	Record  string   `xml:"record,attr,omitempty"`
	Number  string   `xml:"Number,omitempty"`
	Client  string   `xml:"Client,omitempty"`
}

type twimlRecord struct {
	XMLName   xml.Name `xml:"Record"`
	Timeout   int      `xml:"timeout,attr,omitempty"`
	MaxLength int      `xml:"maxLength,attr,omitempty"`
	Action    string   `xml:"action,attr,omitempty"`
}

type twimlGather struct {
	XMLName   xml.Name  `xml:"Gather"`
	NumDigits int       `xml:"numDigits,attr,omitempty"`
	Timeout   int       `xml:"timeout,attr,omitempty"`
	Action    string    `xml:"action,attr,omitempty"`
	Method    string    `xml:"method,attr,omitempty"`
	Say       *twimlSay `xml:"Say,omitempty"`
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	URL     string   `xml:",chardata"`
}

type twimlPause struct {
	XMLName xml.Name `xml:"Pause"`
	Length  int      `xml:"length,attr,omitempty"`
}

// Say speaks text to the caller.
func (d *Document) Say(text string) *Document {
	d.verbs = append(d.verbs, twimlSay{Text: text})
	return d
}

// DialNumber bridges the leg to a PSTN number.
// record takes the provider's record-attribute vocabulary
// (e.g. "record-from-answer"); empty disables recording.
func (d *Document) DialNumber(number string, timeoutSecs int, record string) *Document {
	d.verbs = append(d.verbs, twimlDial{Timeout: timeoutSecs, Record: record, Number: number})
	return d
}

// DialClient bridges the leg to a registered in-browser client device.
func (d *Document) DialClient(clientName string, timeoutSecs int) *Document {
	d.verbs = append(d.verbs, twimlDial{Timeout: timeoutSecs, Client: clientName})
	return d
}

// Record starts recording; the provider posts the result to action.
func (d *Document) Record(timeoutSecs, maxLengthSecs int, action string) *Document {
	d.verbs = append(d.verbs, twimlRecord{Timeout: timeoutSecs, MaxLength: maxLengthSecs, Action: action})
	return d
}

// Gather collects DTMF digits, optionally speaking a prompt while listening.
func (d *Document) Gather(numDigits, timeoutSecs int, action, prompt string) *Document {
	g := twimlGather{NumDigits: numDigits, Timeout: timeoutSecs, Action: action, Method: "POST"}
	if prompt != "" {
		g.Say = &twimlSay{Text: prompt}
	}
	d.verbs = append(d.verbs, g)
	return d
}

// Redirect hands control to another webhook URL.
func (d *Document) Redirect(url string) *Document {
	d.verbs = append(d.verbs, twimlRedirect{URL: url})
	return d
}

// Pause waits silently.
func (d *Document) Pause(lengthSecs int) *Document {
	d.verbs = append(d.verbs, twimlPause{Length: lengthSecs})
	return d
}

// Hangup ends the leg.
func (d *Document) Hangup() *Document {
	d.verbs = append(d.verbs, twimlHangup{})
	return d
}

// Render serializes the document. An empty document renders as a bare
// <Response/>, which the provider treats as an acknowledgement.
func (d *Document) Render() (string, error) {
	r := twimlResponse{Verbs: d.verbs}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(r); err != nil {
		return "", err
	}
	if err := enc.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Ack is the bare acknowledgement body for status/recording callbacks.
func Ack() string {
	out, _ := (&Document{}).Render()
	return out
}
