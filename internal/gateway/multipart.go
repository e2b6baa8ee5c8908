package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
)

// payloadField はJSON本体を運ぶフォームフィールド名。
const payloadField = "payload"

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// rebuildMultipart は受信したmultipart/form-dataを読み、転送用のボディを組み立て直す。
// payload フィールドは application/json として、ファイルはフィールド名・ファイル名・
// Content-Type を保ったまま、その他のフィールドは名前付きの文字列として書き出す。
func rebuildMultipart(r *http.Request) ([]byte, string, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, "", newError(KindInvalidRequest, fmt.Errorf("multipartとして読み取れません: %w", err))
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for {
		part, err := reader.NextRawPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, "", bodyError(err)
		}
		if err := copyPart(w, part); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("multipartの終端の書き込みに失敗: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// copyPart は1つのパートを書き出す。
func copyPart(w *multipart.Writer, part *multipart.Part) error {
	defer func() { _ = part.Close() }()

	// Part.FileName はディレクトリ部分を落とすため、ヘッダーを直接解釈する
	_, params, err := mime.ParseMediaType(part.Header.Get("Content-Disposition"))
	if err != nil {
		return newError(KindInvalidRequest, fmt.Errorf("Content-Dispositionが不正: %w", err))
	}
	name := params["name"]
	if name == "" {
		return newError(KindInvalidRequest, errors.New("フィールド名の無いパートがあります"))
	}

	header := make(textproto.MIMEHeader)
	switch filename, isFile := params["filename"]; {
	case isFile:
		header.Set("Content-Disposition",
			fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(name), quoteEscaper.Replace(filename)))
		contentType := part.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)
	case name == payloadField:
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(name)))
		header.Set("Content-Type", "application/json")
	default:
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(name)))
	}

	dst, err := w.CreatePart(header)
	if err != nil {
		return fmt.Errorf("パート %q の作成に失敗: %w", name, err)
	}
	if _, err := io.Copy(dst, part); err != nil {
		return bodyError(err)
	}
	return nil
}

// bodyError はボディ読み込みのエラーを分類する。
func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return newError(KindRequestTooLarge, err)
	}
	return newError(KindInvalidRequest, fmt.Errorf("リクエストボディの読み込みに失敗: %w", err))
}
