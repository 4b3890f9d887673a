package snapshot

import (
	"time"

	"github.com/go-rod/rod"
)

// rawLiveDoc is the shape evaluated in-page by FromPage's single JS round
// trip: body text, raw anchors, and raw form/input descriptors, all
// pre-filtered to the document order the DOM presents them in.
type rawLiveDoc struct {
	Text  string        `json:"text"`
	Links []rawLiveLink `json:"links"`
	Forms []rawLiveForm `json:"forms"`
}

type rawLiveLink struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

type rawLiveForm struct {
	Inputs []rawLiveInput `json:"inputs"`
}

type rawLiveInput struct {
	Name        string `json:"name"`
	ID          string `json:"id"`
	Type        string `json:"type"`
	Tag         string `json:"tag"`
	Placeholder string `json:"placeholder"`
}

const liveSnapshotJS = `() => {
	const links = Array.from(document.querySelectorAll('a')).slice(0, 200).map(a => ({
		text: (a.innerText || a.textContent || '').trim(),
		href: a.href || '',
	}));
	const forms = Array.from(document.querySelectorAll('form')).slice(0, 5).map(f => ({
		inputs: Array.from(f.querySelectorAll('input,textarea,select')).slice(0, 10).map(el => ({
			name: el.getAttribute('name') || '',
			id: el.id || '',
			type: el.getAttribute('type') || '',
			tag: el.tagName.toLowerCase(),
			placeholder: el.getAttribute('placeholder') || '',
		})),
	}));
	return {
		text: (document.body ? document.body.innerText : '') || '',
		links: links,
		forms: forms,
	};
}`

// FromPage builds a PageSnapshot from a live rod.Page (live mode). If
// evaluation fails (e.g. navigation tore down the execution context), it
// waits up to 5s for the DOM to become stable (rod's WaitDOMStable) and, if
// that wait succeeds, retries once; if the wait or the retry fails it
// returns a minimal snapshot so the outer loop can continue.
func FromPage(page *rod.Page) PageSnapshot {
	finalURL := pageURLOrEmpty(page)
	title, err := page.Info()
	titleStr := finalURL
	if err == nil && title != nil && title.Title != "" {
		titleStr = title.Title
	}

	doc, evalErr := evalLiveDoc(page)
	if evalErr != nil {
		waitErr := waitDOMContentLoaded(page, 5*time.Second)
		if waitErr == nil {
			doc, evalErr = evalLiveDoc(page)
		}
		if evalErr != nil {
			return PageSnapshot{
				URL:   finalURL,
				Title: truncate(titleStr, maxTitleLen),
				Text:  "",
				Links: nil,
				Forms: nil,
			}
		}
	}

	links := make([]Link, 0, maxLinks)
	idx := 0
	for _, l := range doc.Links {
		if len(links) >= maxLinks {
			break
		}
		if isNoiseLink(l.Href, l.Text) {
			continue
		}
		links = append(links, Link{Text: truncate(l.Text, maxLinkText), Href: l.Href, Index: idx})
		idx++
	}

	forms := make([]Form, 0, len(doc.Forms))
	for _, f := range doc.Forms {
		if len(forms) >= maxForms {
			break
		}
		inputs := make([]FormInput, 0, len(f.Inputs))
		for _, in := range f.Inputs {
			tag := in.Tag
			if tag == "" {
				tag = "input"
			}
			inputs = append(inputs, FormInput{
				Name:        in.Name,
				Type:        orDefault(in.Type, tag),
				Placeholder: in.Placeholder,
				Selector:    selectorFor(in.ID, in.Name, tag),
			})
		}
		forms = append(forms, Form{Inputs: inputs})
	}

	return PageSnapshot{
		URL:   finalURL,
		Title: truncate(titleStr, maxTitleLen),
		Text:  truncate(collapseWhitespace(doc.Text), maxTextLen),
		Links: links,
		Forms: forms,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func evalLiveDoc(page *rod.Page) (rawLiveDoc, error) {
	res, err := page.Eval(liveSnapshotJS)
	if err != nil {
		return rawLiveDoc{}, err
	}
	var doc rawLiveDoc
	if err := res.Value.Unmarshal(&doc); err != nil {
		return rawLiveDoc{}, err
	}
	return doc, nil
}

func pageURLOrEmpty(page *rod.Page) string {
	info, err := page.Info()
	if err != nil || info == nil {
		return ""
	}
	return info.URL
}

func waitDOMContentLoaded(page *rod.Page, timeout time.Duration) error {
	return page.Timeout(timeout).WaitDOMStable(300*time.Millisecond, 0.1)
}

// CaptureAccessibilityYAML evaluates a lightweight accessibility summary
// in-page and renders it as YAML, truncated to the snapshot budget.
// Failure is non-fatal: an error result simply means the caller omits the
// field.
func CaptureAccessibilityYAML(page *rod.Page) (string, error) {
	res, err := page.Eval(axTreeJS)
	if err != nil {
		return "", err
	}
	s := res.Value.Str()
	r := []rune(s)
	if len(r) > maxAXYAML {
		s = string(r[:maxAXYAML])
	}
	return s, nil
}

const axTreeJS = `() => {
	const implicitRoles = {a:'link', button:'button', input:'textbox', textarea:'textbox',
		select:'combobox', nav:'navigation', header:'banner', footer:'contentinfo', main:'main', form:'form'};
	const lines = [];
	let budget = 3000;
	function walk(node, depth) {
		if (budget <= 0 || !node) return;
		if (node.nodeType === 1) {
			const role = node.getAttribute('role') || implicitRoles[node.tagName.toLowerCase()];
			if (role) {
				const name = (node.getAttribute('aria-label') || node.innerText || '').trim().slice(0, 60);
				let line = '  '.repeat(depth) + '- role: ' + role;
				if (name) line += '\n' + '  '.repeat(depth) + '  name: "' + name.replace(/"/g, "'") + '"';
				line += '\n';
				if (line.length > budget) { budget = 0; return; }
				lines.push(line);
				budget -= line.length;
				depth++;
			}
		}
		for (const c of node.childNodes) {
			walk(c, depth);
			if (budget <= 0) return;
		}
	}
	walk(document.body, 0);
	return lines.join('');
}`
