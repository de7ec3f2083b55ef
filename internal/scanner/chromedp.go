package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/wcag-monitor/internal/model"
	"github.com/wcag-monitor/pkg/config"
	"go.uber.org/zap"
)

const (
	contextMaxLength = 300
	pollInterval     = 200 * time.Millisecond
)

// ChromeEngine scans pages in a shared headless Chrome, one tab per scan.
type ChromeEngine struct {
	log        *zap.Logger
	script     string
	captureDir string

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc

	startOnce sync.Once
	startErr  error
}

// NewChromeEngine prepares the browser allocator and loads the rule runner
// script. The browser itself starts on the first scan. A missing or unreadable
// script is logged and makes every scan fail, so the API stays available.
func NewChromeEngine(cfg *config.ScannerConfig, log *zap.Logger) (*ChromeEngine, error) {
	var script string
	if cfg.RunnerScript == "" {
		log.Warn("scanner runner script not configured, scans will fail")
	} else if b, err := os.ReadFile(cfg.RunnerScript); err != nil {
		log.Warn("scanner runner script unreadable, scans will fail",
			zap.String("runner_script", cfg.RunnerScript), zap.Error(err))
	} else {
		script = string(b)
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if cfg.ChromePath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ChromePath))
	}
	for _, arg := range cfg.ChromeArgs {
		name, value := parseFlag(arg)
		opts = append(opts, chromedp.Flag(name, value))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Warnf),
	)
	return &ChromeEngine{
		log:         log,
		script:      script,
		captureDir:  cfg.CaptureDir,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		browserCtx:  browserCtx,
		cancel:      cancel,
	}, nil
}

// parseFlag turns "--name=value" or "--name" into a chromedp flag.
func parseFlag(arg string) (string, interface{}) {
	arg = strings.TrimLeft(arg, "-")
	if name, value, ok := strings.Cut(arg, "="); ok {
		return name, value
	}
	return arg, true
}

// Close shuts the browser down.
func (e *ChromeEngine) Close() {
	e.cancel()
	e.allocCancel()
}

func (e *ChromeEngine) start() error {
	e.startOnce.Do(func() {
		e.startErr = chromedp.Run(e.browserCtx)
	})
	return e.startErr
}

// Scan opens url in a new tab, runs the configured actions and evaluates the
// page with the rule runner.
func (e *ChromeEngine) Scan(ctx context.Context, url string, opts Options) (*Report, error) {
	if e.script == "" {
		return nil, errors.New("scanner runner script is not configured")
	}
	if err := e.start(); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}

	log := opts.Log
	if log == nil {
		log = e.log
	}

	tabCtx, cancelTab := chromedp.NewContext(e.browserCtx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		tabCtx, cancel = context.WithTimeout(tabCtx, opts.Timeout)
		defer cancel()
	}

	tasks := chromedp.Tasks{network.Enable()}
	if len(opts.Headers) > 0 {
		headers := make(network.Headers, len(opts.Headers))
		for k, v := range opts.Headers {
			headers[k] = v
		}
		tasks = append(tasks, network.SetExtraHTTPHeaders(headers))
	}
	tasks = append(tasks, chromedp.Navigate(url))
	if opts.Wait > 0 {
		log.Debug("waiting before scan", zap.Duration("wait", opts.Wait))
		tasks = append(tasks, chromedp.Sleep(opts.Wait))
	}
	for _, action := range opts.Actions {
		log.Debug("running action", zap.String("action", action.Raw))
		tasks = append(tasks, e.actionTask(action))
	}

	var report Report
	var raw []rawIssue
	tasks = append(tasks,
		chromedp.Title(&report.DocumentTitle),
		chromedp.Location(&report.PageURL),
		e.injectRunner(),
		chromedp.Evaluate(runnerExpression(opts.Standard, opts.HideElements), &raw,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams { return p.WithAwaitPromise(true) }),
	)

	if err := chromedp.Run(tabCtx, tasks...); err != nil {
		return nil, fmt.Errorf("scan %s: %w", url, err)
	}

	issues := make([]model.Issue, 0, len(raw))
	for _, r := range raw {
		issues = append(issues, model.Issue{
			Type:     issueType(r.Type),
			Code:     r.Code,
			Message:  r.Message,
			Selector: r.Selector,
			Context:  r.Context,
		})
	}
	report.Issues = FilterIgnored(issues, opts.Ignore)
	log.Debug("scan finished", zap.Int("issues", len(report.Issues)))
	return &report, nil
}

type rawIssue struct {
	Type     int    `json:"type"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Selector string `json:"selector"`
	Context  string `json:"context"`
}

func (e *ChromeEngine) injectRunner() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		var loaded bool
		if err := chromedp.Evaluate(e.script+"\n;typeof HTMLCS !== 'undefined'", &loaded).Do(ctx); err != nil {
			return fmt.Errorf("inject runner: %w", err)
		}
		if !loaded {
			return errors.New("runner script did not define HTMLCS")
		}
		return nil
	})
}

func runnerExpression(standard, hideElements string) string {
	return fmt.Sprintf(`new Promise((resolve, reject) => {
	const hidden = %s ? Array.from(document.querySelectorAll(%s)) : [];
	const isHidden = (el) => hidden.some((h) => h === el || h.contains(el));
	const selectorFor = (el) => {
		if (!el || el.nodeType !== 1) return '';
		if (el.id) return '#' + CSS.escape(el.id);
		const parts = [];
		for (let node = el; node && node.nodeType === 1 && node !== document.documentElement; node = node.parentElement) {
			let part = node.tagName.toLowerCase();
			if (node.id) { parts.unshift('#' + CSS.escape(node.id) + ' > ' + part); break; }
			const siblings = node.parentElement ? Array.from(node.parentElement.children).filter((s) => s.tagName === node.tagName) : [];
			if (siblings.length > 1) part += ':nth-child(' + (Array.from(node.parentElement.children).indexOf(node) + 1) + ')';
			parts.unshift(part);
		}
		return parts.join(' > ');
	};
	try {
		HTMLCS.process(%s, window.document, () => {
			resolve(HTMLCS.getMessages().filter((m) => !isHidden(m.element)).map((m) => ({
				type: m.type,
				code: m.code,
				message: m.msg,
				selector: selectorFor(m.element),
				context: m.element && m.element.outerHTML ? m.element.outerHTML.slice(0, %d) : '',
			})));
		}, (err) => reject(new Error(String(err))));
	} catch (err) {
		reject(err);
	}
})`, jsString(hideElements), jsString(hideElements), jsString(standard), contextMaxLength)
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func (e *ChromeEngine) actionTask(a Action) chromedp.Action {
	switch a.Kind {
	case ActionNavigate:
		return chromedp.Navigate(a.Value)
	case ActionClick:
		return chromedp.Click(a.Selector, chromedp.ByQuery)
	case ActionSetField:
		return evalAction(fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) throw new Error('no element matching selector');
	el.value = %s;
	el.dispatchEvent(new Event('input', {bubbles: true}));
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
})()`, jsString(a.Selector), jsString(a.Value)))
	case ActionClearField:
		return evalAction(fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) throw new Error('no element matching selector');
	el.value = '';
	el.dispatchEvent(new Event('input', {bubbles: true}));
	return true;
})()`, jsString(a.Selector)))
	case ActionCheckField, ActionUncheckField:
		return evalAction(fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) throw new Error('no element matching selector');
	el.checked = %t;
	el.dispatchEvent(new Event('change', {bubbles: true}));
	return true;
})()`, jsString(a.Selector), a.Kind == ActionCheckField))
	case ActionScreenCapture:
		return chromedp.ActionFunc(func(ctx context.Context) error {
			var buf []byte
			if err := chromedp.FullScreenshot(&buf, 90).Do(ctx); err != nil {
				return err
			}
			path, err := capturePath(e.captureDir, a.Value)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(e.captureDir, 0o755); err != nil {
				return fmt.Errorf("create capture dir: %w", err)
			}
			return os.WriteFile(path, buf, 0o644)
		})
	case ActionWaitForElement:
		switch a.State {
		case "added":
			return chromedp.WaitReady(a.Selector, chromedp.ByQuery)
		case "removed":
			return chromedp.WaitNotPresent(a.Selector, chromedp.ByQuery)
		case "visible":
			return chromedp.WaitVisible(a.Selector, chromedp.ByQuery)
		default:
			return chromedp.WaitNotVisible(a.Selector, chromedp.ByQuery)
		}
	case ActionWaitForEvent:
		var emitted bool
		return chromedp.Evaluate(fmt.Sprintf(`new Promise((resolve, reject) => {
	const el = document.querySelector(%s);
	if (!el) { reject(new Error('no element matching selector')); return; }
	el.addEventListener(%s, () => resolve(true), {once: true});
})`, jsString(a.Selector), jsString(a.Event)), &emitted,
			func(p *runtime.EvaluateParams) *runtime.EvaluateParams { return p.WithAwaitPromise(true) })
	case ActionWaitForURL:
		return waitForLocation(a)
	}
	return chromedp.ActionFunc(func(context.Context) error {
		return fmt.Errorf("unsupported action %q", a.Raw)
	})
}

// capturePath places a capture inside dir, keeping only the base name of the
// requested file.
func capturePath(dir, name string) (string, error) {
	if dir == "" {
		return "", errors.New("screen capture: scanner.capture_dir is not configured")
	}
	base := filepath.Base(filepath.Clean(name))
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", fmt.Errorf("screen capture: invalid file name %q", name)
	}
	return filepath.Join(dir, base), nil
}

func evalAction(js string) chromedp.Action {
	var ok bool
	return chromedp.Evaluate(js, &ok)
}

// waitForLocation polls the page location until the requested part matches
// (or stops matching, for negated waits) or ctx expires.
func waitForLocation(a Action) chromedp.Action {
	property := map[string]string{
		"url":      "href",
		"path":     "pathname",
		"fragment": "hash",
		"hash":     "hash",
		"host":     "host",
	}[a.Subject]
	expr := "window.location." + property

	return chromedp.ActionFunc(func(ctx context.Context) error {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			var current string
			if err := chromedp.Evaluate(expr, &current).Do(ctx); err != nil {
				return err
			}
			if (current == a.Value) != a.Negate {
				return nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("waiting for %s: %w", a.Raw, ctx.Err())
			case <-ticker.C:
			}
		}
	})
}
