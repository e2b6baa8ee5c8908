package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nao1215/tourgate/internal/follower"
)

// paramKind はパスパラメータの型。
type paramKind int

const (
	kindAny paramKind = iota
	kindLong
	kindInt
)

// parseKind は {name:type} の type 部分を解釈する。
func parseKind(s string) (paramKind, error) {
	switch s {
	case "":
		return kindAny, nil
	case "long":
		return kindLong, nil
	case "int":
		return kindInt, nil
	default:
		return 0, fmt.Errorf("未知のパラメータ型 %q", s)
	}
}

// accepts は値がパラメータ型に合うかどうかを返す。
func (k paramKind) accepts(v string) bool {
	switch k {
	case kindLong:
		_, err := strconv.ParseInt(v, 10, 64)
		return err == nil
	case kindInt:
		_, err := strconv.ParseInt(v, 10, 32)
		return err == nil
	default:
		return v != ""
	}
}

func (k paramKind) String() string {
	switch k {
	case kindLong:
		return "long"
	case kindInt:
		return "int"
	default:
		return "any"
	}
}

// segment はパステンプレートの1区間。paramが空ならリテラル。
type segment struct {
	literal string
	param   string
	kind    paramKind
}

// parseTemplate はパステンプレートを区間に分解する。
func parseTemplate(tmpl string) ([]segment, error) {
	tmpl = strings.Trim(tmpl, "/")
	if tmpl == "" {
		return nil, nil
	}

	parts := strings.Split(tmpl, "/")
	segs := make([]segment, 0, len(parts))
	for _, p := range parts {
		switch {
		case p == "":
			return nil, errors.New("空の区間があります")
		case strings.HasPrefix(p, "{") && strings.HasSuffix(p, "}"):
			name, typ, _ := strings.Cut(p[1:len(p)-1], ":")
			if name == "" {
				return nil, fmt.Errorf("パラメータ名が空です: %q", p)
			}
			kind, err := parseKind(typ)
			if err != nil {
				return nil, err
			}
			segs = append(segs, segment{param: name, kind: kind})
		case strings.ContainsAny(p, "{}"):
			return nil, fmt.Errorf("区間の一部だけをパラメータにはできません: %q", p)
		default:
			segs = append(segs, segment{literal: p})
		}
	}
	return segs, nil
}

// splitPath はリクエストパスを区間に分解する。
func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// compiledRoute は解析済みのルート。
type compiledRoute struct {
	desc    RouteDescriptor
	pattern []segment
	target  []segment
}

// match はパス区間がパターンに一致するか判定し、パラメータを返す。
func (r *compiledRoute) match(parts []string) (map[string]string, bool) {
	if len(parts) != len(r.pattern) {
		return nil, false
	}

	var params map[string]string
	for i, seg := range r.pattern {
		if seg.param == "" {
			if !strings.EqualFold(parts[i], seg.literal) {
				return nil, false
			}
			continue
		}
		if !seg.kind.accepts(parts[i]) {
			return nil, false
		}
		if params == nil {
			params = make(map[string]string, len(r.pattern))
		}
		params[seg.param] = parts[i]
	}
	return params, true
}

// Match はルート解決の結果。リクエストごとに生成する。
type Match struct {
	// Route は一致したルート。
	Route RouteDescriptor
	// Params はパスパラメータ。
	Params map[string]string

	target []segment
}

// TargetPath は転送先パスを組み立てる。{callerId} は callerID に置き換える。
func (m *Match) TargetPath(callerID string) string {
	out := make([]string, len(m.target))
	for i, seg := range m.target {
		switch {
		case seg.param == "":
			out[i] = seg.literal
		case seg.param == CallerIDParam:
			out[i] = url.PathEscape(callerID)
		default:
			out[i] = url.PathEscape(m.Params[seg.param])
		}
	}
	return strings.Join(out, "/")
}

// Dispatcher はルート表を保持し、メソッドとパスからルートを解決する。
// 構築後は読み取り専用で、並行に使ってよい。
type Dispatcher struct {
	routes []compiledRoute
}

// NewDispatcher はルート表を検証してDispatcherを生成する。
// 不正なルートが1つでもあればすべての問題をまとめて返す。
func NewDispatcher(routes []RouteDescriptor) (*Dispatcher, error) {
	var errs []error
	seen := make(map[string]int, len(routes))
	compiled := make([]compiledRoute, 0, len(routes))

	for i, rd := range routes {
		cr, err := compileRoute(rd)
		if err != nil {
			errs = append(errs, fmt.Errorf("ルート %s %s: %w", rd.Method, rd.Pattern, err))
			continue
		}

		key := routeKey(rd.Method, cr.pattern)
		if prev, dup := seen[key]; dup {
			errs = append(errs, fmt.Errorf("ルート %s %s: %d 番目のルートと重複しています", rd.Method, rd.Pattern, prev))
			continue
		}
		seen[key] = i
		compiled = append(compiled, cr)
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("ルート表が不正です: %w", errors.Join(errs...))
	}
	return &Dispatcher{routes: compiled}, nil
}

// Resolve はメソッドとパスに一致する最初のルートを返す。
// メソッドは完全一致、パスのリテラル区間は大文字小文字を区別しない。
func (d *Dispatcher) Resolve(method, path string) (*Match, bool) {
	parts := splitPath(path)
	for i := range d.routes {
		r := &d.routes[i]
		if r.desc.Method != method {
			continue
		}
		params, ok := r.match(parts)
		if !ok {
			continue
		}
		return &Match{Route: r.desc, Params: params, target: r.target}, true
	}
	return nil, false
}

// Routes はルート表を宣言順で返す。
func (d *Dispatcher) Routes() []RouteDescriptor {
	out := make([]RouteDescriptor, len(d.routes))
	for i, r := range d.routes {
		out[i] = r.desc
	}
	return out
}

// routeKey は重複検出用のキー。パラメータ名の違いは無視する。
func routeKey(method string, pattern []segment) string {
	var b strings.Builder
	b.WriteString(method)
	for _, seg := range pattern {
		b.WriteByte('/')
		if seg.param == "" {
			b.WriteString(strings.ToLower(seg.literal))
			continue
		}
		b.WriteString("{" + seg.kind.String() + "}")
	}
	return b.String()
}

// compileRoute はルートを解析し、不変条件を検証する。
func compileRoute(rd RouteDescriptor) (compiledRoute, error) {
	switch rd.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return compiledRoute{}, fmt.Errorf("対応していないメソッド %q", rd.Method)
	}

	pattern, err := parseTemplate(rd.Pattern)
	if err != nil {
		return compiledRoute{}, fmt.Errorf("公開パス: %w", err)
	}
	target, err := parseTemplate(rd.Target)
	if err != nil {
		return compiledRoute{}, fmt.Errorf("転送先パス: %w", err)
	}

	params := make(map[string]paramKind, len(pattern))
	for _, seg := range pattern {
		if seg.param == "" {
			continue
		}
		if seg.param == CallerIDParam {
			return compiledRoute{}, fmt.Errorf("公開パスに予約名 {%s} は使えません", CallerIDParam)
		}
		if _, dup := params[seg.param]; dup {
			return compiledRoute{}, fmt.Errorf("パラメータ {%s} が重複しています", seg.param)
		}
		params[seg.param] = seg.kind
	}

	usesCaller := rd.InjectCallerID || rd.CallerQuery != ""
	for _, seg := range target {
		if seg.param == "" {
			continue
		}
		if seg.param == CallerIDParam {
			usesCaller = true
			continue
		}
		if _, ok := params[seg.param]; !ok {
			return compiledRoute{}, fmt.Errorf("転送先パスの {%s} が公開パスにありません", seg.param)
		}
	}

	if rd.Policy.RequiredRole != "" && !rd.Policy.RequiresAuth {
		return compiledRoute{}, errors.New("ロールを指定するルートは認証必須にする必要があります")
	}
	if usesCaller && !rd.Policy.RequiresAuth {
		return compiledRoute{}, errors.New("呼び出し元のIDを使うルートは認証必須にする必要があります")
	}

	switch rd.Body {
	case BodyRPC:
		if rd.Target != "" || rd.Service != "" {
			return compiledRoute{}, errors.New("RPCルートは転送先を持てません")
		}
		if rd.Action != follower.ActionFollow && rd.Action != follower.ActionUnfollow {
			return compiledRoute{}, fmt.Errorf("RPCルートの操作が不正です: %s", rd.Action)
		}
		if kind, ok := params["id"]; !ok || kind != kindLong {
			return compiledRoute{}, errors.New("RPCルートには {id:long} が必要です")
		}
		if !rd.Policy.RequiresAuth {
			return compiledRoute{}, errors.New("RPCルートは認証必須にする必要があります")
		}
	case BodyNone, BodyJSON, BodyMultipart:
		if rd.Service == "" || rd.Target == "" {
			return compiledRoute{}, errors.New("転送先サービスとパスが必要です")
		}
		if rd.Action != 0 {
			return compiledRoute{}, errors.New("RPC以外のルートに操作は指定できません")
		}
		if rd.Body != BodyNone && !methodCarriesBody(rd.Method) {
			return compiledRoute{}, fmt.Errorf("%s はボディを転送できません", rd.Method)
		}
	default:
		return compiledRoute{}, fmt.Errorf("未知のボディ処理モード %d", int(rd.Body))
	}

	return compiledRoute{desc: rd, pattern: pattern, target: target}, nil
}

// methodCarriesBody はボディを転送するメソッドかどうかを返す。
func methodCarriesBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	default:
		return false
	}
}
