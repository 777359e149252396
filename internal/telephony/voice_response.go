package telephony

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"strconv"
	"strings"
)

// VoiceResponse is the carrier-agnostic instruction set returned to a voice
// webhook. Verbs render in this order: Say, Record, Dial, Enqueue, Redirect,
// Hangup. Reject short-circuits everything else.
type VoiceResponse struct {
	Say   string
	Voice string

	// Record asks the carrier to record a message (voicemail).
	Record *RecordSpec

	DialTo      string
	Enqueue     string
	RedirectURL string

	Hangup bool
	Reject bool
}

type RecordSpec struct {
	MaxLengthSeconds int
	ActionURL        string
}

var ErrEmptyVoiceResponse = errors.New("telephony: empty voice response")

// RenderVoiceResponse returns the body and content type expected by provider.
// Twilio and SignalWire get TwiML, Plivo gets Plivo XML, Telnyx gets a JSON
// acknowledgement because its call control is driven by REST commands.
func RenderVoiceResponse(provider Provider, vr VoiceResponse) (string, string, error) {
	if vr == (VoiceResponse{}) {
		return "", "", ErrEmptyVoiceResponse
	}
	switch provider {
	case ProviderTwilio, ProviderSignalWire:
		s, err := encodeXML(twimlVerbs(vr))
		return s, "application/xml", err
	case ProviderPlivo:
		s, err := encodeXML(plivoVerbs(vr))
		return s, "application/xml", err
	case ProviderTelnyx:
		b, err := json.Marshal(map[string]any{"status": "ok"})
		return string(b), "application/json", err
	default:
		return "", "", errors.New("telephony: unknown provider for voice response")
	}
}

type xmlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Verbs   []any    `xml:",any"`
}

type twimlSay struct {
	XMLName xml.Name `xml:"Say"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type twimlRecord struct {
	XMLName   xml.Name `xml:"Record"`
	MaxLength int      `xml:"maxLength,attr,omitempty"`
	Action    string   `xml:"action,attr,omitempty"`
	PlayBeep  bool     `xml:"playBeep,attr"`
}

type twimlDial struct {
	XMLName xml.Name  `xml:"Dial"`
	Number  string    `xml:"Number,omitempty"`
	Sip     *twimlSip `xml:"Sip,omitempty"`
}

type twimlSip struct {
	URI string `xml:",chardata"`
}

type twimlEnqueue struct {
	XMLName xml.Name `xml:"Enqueue"`
	Name    string   `xml:",chardata"`
}

type twimlRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

type twimlHangup struct {
	XMLName xml.Name `xml:"Hangup"`
}

type twimlReject struct {
	XMLName xml.Name `xml:"Reject"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

func twimlVerbs(vr VoiceResponse) xmlResponse {
	var r xmlResponse
	if vr.Reject {
		r.Verbs = append(r.Verbs, twimlReject{Reason: "busy"})
		return r
	}
	if vr.Say != "" {
		r.Verbs = append(r.Verbs, twimlSay{Voice: vr.Voice, Text: vr.Say})
	}
	if vr.Record != nil {
		r.Verbs = append(r.Verbs, twimlRecord{MaxLength: vr.Record.MaxLengthSeconds, Action: vr.Record.ActionURL, PlayBeep: true})
	}
	if target := strings.TrimSpace(vr.DialTo); target != "" {
		d := twimlDial{}
		// Prefer SIP if it looks like sip:... otherwise treat as a PSTN number.
		if strings.HasPrefix(strings.ToLower(target), "sip:") {
			d.Sip = &twimlSip{URI: target}
		} else {
			d.Number = target
		}
		r.Verbs = append(r.Verbs, d)
	}
	if vr.Enqueue != "" {
		r.Verbs = append(r.Verbs, twimlEnqueue{Name: vr.Enqueue})
	}
	if vr.RedirectURL != "" {
		r.Verbs = append(r.Verbs, twimlRedirect{Method: "POST", URL: vr.RedirectURL})
	}
	if vr.Hangup {
		r.Verbs = append(r.Verbs, twimlHangup{})
	}
	return r
}

type plivoSpeak struct {
	XMLName xml.Name `xml:"Speak"`
	Voice   string   `xml:"voice,attr,omitempty"`
	Text    string   `xml:",chardata"`
}

type plivoRecord struct {
	XMLName   xml.Name `xml:"Record"`
	MaxLength string   `xml:"maxLength,attr,omitempty"`
	Action    string   `xml:"action,attr,omitempty"`
	PlayBeep  bool     `xml:"playBeep,attr"`
}

type plivoDial struct {
	XMLName xml.Name      `xml:"Dial"`
	Number  *plivoNumber  `xml:"Number,omitempty"`
	User    *plivoSIPUser `xml:"User,omitempty"`
}

type plivoNumber struct {
	Value string `xml:",chardata"`
}

type plivoSIPUser struct {
	Value string `xml:",chardata"`
}

type plivoWait struct {
	XMLName xml.Name `xml:"Wait"`
	Length  int      `xml:"length,attr"`
}

type plivoRedirect struct {
	XMLName xml.Name `xml:"Redirect"`
	Method  string   `xml:"method,attr"`
	URL     string   `xml:",chardata"`
}

type plivoHangup struct {
	XMLName xml.Name `xml:"Hangup"`
	Reason  string   `xml:"reason,attr,omitempty"`
}

func plivoVerbs(vr VoiceResponse) xmlResponse {
	var r xmlResponse
	if vr.Reject {
		r.Verbs = append(r.Verbs, plivoHangup{Reason: "busy"})
		return r
	}
	if vr.Say != "" {
		r.Verbs = append(r.Verbs, plivoSpeak{Voice: plivoVoice(vr.Voice), Text: vr.Say})
	}
	if vr.Record != nil {
		rec := plivoRecord{Action: vr.Record.ActionURL, PlayBeep: true}
		if vr.Record.MaxLengthSeconds > 0 {
			rec.MaxLength = strconv.Itoa(vr.Record.MaxLengthSeconds)
		}
		r.Verbs = append(r.Verbs, rec)
	}
	if target := strings.TrimSpace(vr.DialTo); target != "" {
		d := plivoDial{}
		if strings.HasPrefix(strings.ToLower(target), "sip:") {
			d.User = &plivoSIPUser{Value: target}
		} else {
			d.Number = &plivoNumber{Value: target}
		}
		r.Verbs = append(r.Verbs, d)
	}
	if vr.Enqueue != "" {
		// Plivo has no queue verb; hold the caller until the router redirects.
		r.Verbs = append(r.Verbs, plivoWait{Length: 60})
	}
	if vr.RedirectURL != "" {
		r.Verbs = append(r.Verbs, plivoRedirect{Method: "POST", URL: vr.RedirectURL})
	}
	if vr.Hangup {
		r.Verbs = append(r.Verbs, plivoHangup{})
	}
	return r
}

func plivoVoice(v string) string {
	switch strings.ToUpper(v) {
	case "MAN":
		return "MAN"
	case "":
		return ""
	default:
		return "WOMAN"
	}
}

func encodeXML(r xmlResponse) (string, error) {
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
