// Package session は1ユーザー分のチャットセッション状態（要約・履歴・インデックス）を管理します。
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jinford/docchat/internal/core/apperr"
	"github.com/jinford/docchat/internal/core/ask"
	"github.com/jinford/docchat/internal/core/index"
	"github.com/jinford/docchat/internal/core/ingestion"
	"github.com/jinford/docchat/internal/core/intent"
	"github.com/jinford/docchat/internal/core/summary"
)

// ModificationReply は要約修正ターンでユーザーに返す定型文
const ModificationReply = "The summary has been updated based on your request."

var (
	// ErrEmptyQuery は空のクエリが送信された場合のエラー
	ErrEmptyQuery = errors.New("please enter a query")

	// ErrNoSummary は要約が存在しない状態で要約修正を行おうとした場合のエラー
	ErrNoSummary = errors.New("no summary available: ingest a document first")
)

// Turn はチャット履歴の1往復
type Turn struct {
	Query    string
	Response string
	Intent   intent.Intent
	Fallback bool
	Sources  []ask.SourceReference
	At       time.Time
}

// Reply は AnswerOrModify の結果
type Reply struct {
	Response       string
	Summary        string // 修正後（または変更のない）要約
	Classification intent.Classification
	Sources        []ask.SourceReference
}

// Router は発話を分類し、質問応答または要約修正に振り分ける
type Router struct {
	classifier *intent.Classifier
	answerer   *ask.AskService
	editor     *summary.Editor
	logger     *slog.Logger
}

// NewRouter は新しい Router を作成する
func NewRouter(classifier *intent.Classifier, answerer *ask.AskService, editor *summary.Editor, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		classifier: classifier,
		answerer:   answerer,
		editor:     editor,
		logger:     logger,
	}
}

// AnswerOrModify は1ターン分のクエリを処理する。
// question の場合は idx を検索して回答し、modification の場合は currentSummary を書き換えて永続化する。
func (r *Router) AnswerOrModify(ctx context.Context, query, currentSummary string, idx index.VectorIndex) (*Reply, error) {
	classification := r.classifier.Classify(ctx, query)

	r.logger.Info("intent detected",
		"query", query,
		"intent", classification.Intent,
		"source", classification.Source,
	)

	switch classification.Intent {
	case intent.Modification:
		if currentSummary == "" {
			return nil, ErrNoSummary
		}
		revised, err := r.editor.Revise(ctx, query, currentSummary)
		if err != nil {
			return nil, err
		}
		return &Reply{
			Response:       ModificationReply,
			Summary:        revised,
			Classification: classification,
		}, nil

	default:
		result, err := r.answerer.Ask(ctx, idx, query)
		if err != nil {
			return nil, err
		}
		return &Reply{
			Response:       result.Answer,
			Summary:        currentSummary,
			Classification: classification,
			Sources:        result.Sources,
		}, nil
	}
}

// Ingester はドキュメントを取り込むパイプライン
type Ingester interface {
	Run(ctx context.Context, path string) (*ingestion.Result, error)
}

// Session は単一ユーザーの対話状態を保持する。
// ターンは逐次処理され、Submit の同時呼び出しは直列化される。
type Session struct {
	id           string
	ingester     Ingester
	router       *Router
	indexStore   index.Store
	summaryStore summary.Store
	logger       *slog.Logger

	mu       sync.Mutex
	summary  string
	history  []Turn
	idx      index.VectorIndex
	document string
}

type SessionOption func(*Session)

// WithSessionLogger は Session にロガーを設定する
func WithSessionLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logger
	}
}

// New は新しい Session を作成する
func New(ingester Ingester, router *Router, indexStore index.Store, summaryStore summary.Store, opts ...SessionOption) *Session {
	s := &Session{
		id:           uuid.NewString(),
		ingester:     ingester,
		router:       router,
		indexStore:   indexStore,
		summaryStore: summaryStore,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("sessionID", s.id)
	return s
}

// ID はセッション ID を返す
func (s *Session) ID() string { return s.id }

// Reset は永続化されたインデックスと要約ファイルを削除し、セッション状態を初期化する。
// 削除対象が存在しなくてもエラーにしない。
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetLocked(ctx)
}

func (s *Session) resetLocked(ctx context.Context) error {
	if err := s.indexStore.Destroy(ctx); err != nil {
		return &apperr.IndexError{Op: "destroy", Err: err}
	}
	if err := s.summaryStore.Remove(ctx); err != nil {
		return fmt.Errorf("failed to remove summary: %w", err)
	}
	s.summary = ""
	s.history = nil
	s.idx = nil
	s.document = ""
	s.logger.Info("session state cleared")
	return nil
}

// Ingest は既存の状態を破棄した上でドキュメントを取り込み、要約を返す
func (s *Session) Ingest(ctx context.Context, path string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.resetLocked(ctx); err != nil {
		return "", err
	}

	result, err := s.ingester.Run(ctx, path)
	if err != nil {
		return "", err
	}

	idx, err := s.indexStore.Open(ctx)
	if err != nil {
		return "", &apperr.IndexError{Op: "open", Err: err}
	}

	s.idx = idx
	s.summary = result.Summary
	s.document = path

	return result.Summary, nil
}

// Resume は永続化済みの要約とインデックスを読み込む。
// 要約ファイルまたはインデックスが存在しない場合は未準備のままにする。
func (s *Session) Resume(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	text, ok, err := s.summaryStore.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load summary: %w", err)
	}
	if ok {
		s.summary = text
	}

	idx, err := s.indexStore.Open(ctx)
	switch {
	case errors.Is(err, index.ErrNotReady):
		s.logger.Info("no persisted index found")
	case err != nil:
		return &apperr.IndexError{Op: "open", Err: err}
	default:
		s.idx = idx
	}

	return nil
}

// Submit はユーザーのクエリを1ターン処理して履歴に追加する。
// 失敗した場合、要約と履歴は変更されない。
func (s *Session) Submit(ctx context.Context, query string) (Turn, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Turn{}, ErrEmptyQuery
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	reply, err := s.router.AnswerOrModify(ctx, query, s.summary, s.idx)
	if err != nil {
		s.logger.Error("turn failed", "error", err)
		return Turn{}, err
	}

	turn := Turn{
		Query:    query,
		Response: reply.Response,
		Intent:   reply.Classification.Intent,
		Fallback: reply.Classification.IsFallback(),
		Sources:  reply.Sources,
		At:       time.Now(),
	}
	s.summary = reply.Summary
	s.history = append(s.history, turn)

	return turn, nil
}

// SetSummary は要約を手動で置き換え、ファイルに保存する
func (s *Session) SetSummary(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.summaryStore.Save(ctx, text); err != nil {
		return fmt.Errorf("failed to save summary: %w", err)
	}
	s.summary = text
	s.logger.Info("summary edited manually", "summaryLength", len(text))
	return nil
}

// Summary は現在の要約を返す
func (s *Session) Summary() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary
}

// History はチャット履歴のコピーを返す
func (s *Session) History() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Ready は質問応答が可能か（インデックスが開かれているか）を返す
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx != nil
}

// Document は最後に取り込んだドキュメントのパスを返す
func (s *Session) Document() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.document
}
