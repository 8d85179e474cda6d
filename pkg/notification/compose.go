package notification

import (
	"bytes"
	"fmt"
	"html/template"

	"SafeStack/pkg/i18n"
)

// AlertDetails is the content of one alert email.
type AlertDetails struct {
	Policy      string
	Severity    string
	Timestamp   string
	Description string
	Reasoning   string
	VideoURL    string
}

// Composer renders alert subjects and bodies in a fixed locale.
type Composer struct {
	tr   *i18n.I18nSupport
	lang string
}

func NewComposer(tr *i18n.I18nSupport, lang string) *Composer {
	if lang == "" {
		lang = "en"
	}
	return &Composer{tr: tr, lang: lang}
}

func (c *Composer) t(key string, data map[string]interface{}) string {
	return c.tr.T(c.lang, key, data)
}

// Subject 邮件标题
func (c *Composer) Subject(policy string) string {
	return c.t("alert.subject", map[string]interface{}{"Policy": policy})
}

// Body renders the plain-text alert body.
func (c *Composer) Body(d AlertDetails) string {
	return fmt.Sprintf("%s: %s\n%s: %s\n%s: %s\n\n%s: %s\n\n%s: %s\n\n%s: %s",
		c.t("alert.policy", nil), d.Policy,
		c.t("alert.severity", nil), d.Severity,
		c.t("alert.timestamp", nil), d.Timestamp,
		c.t("alert.description", nil), d.Description,
		c.t("alert.reasoning", nil), d.Reasoning,
		c.t("alert.video_url", nil), d.VideoURL,
	)
}

var htmlTmpl = template.Must(template.New("alert").Parse(`<html>
<body style="font-family: Arial, sans-serif;">
<h2 style="color: #d9534f;">{{.Header}}</h2>
<div style="white-space: pre-wrap;">{{.Body}}</div>
{{- if .Images}}
<h3>{{.EvidenceTitle}}</h3>
{{- range .Images}}
<div style="margin: 10px 0;">
<p style="color: #666; font-size: 12px;"><a href="{{.URL}}">{{.Label}}</a></p>
<a href="{{.URL}}"><img src="{{.URL}}" alt="{{.Label}}" style="max-width: 100%; max-height: 400px; border: 1px solid #ddd; border-radius: 8px;"></a>
</div>
{{- end}}
{{- end}}
<hr>
<p style="color: #888; font-size: 12px;">{{.Footer}}</p>
</body>
</html>`))

type imageLink struct {
	URL   string
	Label string
}

// HTML wraps body in the alert email layout. Each evidence image is shown
// inline, with a plain link for clients that block remote images.
func (c *Composer) HTML(body string, imageURLs []string) (string, error) {
	links := make([]imageLink, 0, len(imageURLs))
	for i, u := range imageURLs {
		links = append(links, imageLink{URL: u, Label: c.t("alert.image", map[string]interface{}{"Index": i + 1})})
	}
	var buf bytes.Buffer
	err := htmlTmpl.Execute(&buf, map[string]interface{}{
		"Header":        c.t("alert.header", nil),
		"Body":          body,
		"EvidenceTitle": c.t("alert.evidence", nil),
		"Images":        links,
		"Footer":        c.t("alert.footer", nil),
	})
	return buf.String(), err
}
