package i18n

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

//go:embed all:locales
var localeFS embed.FS

// Manager 管理 i18n Bundle
type Manager struct {
	bundle          *i18n.Bundle
	defaultLanguage language.Tag
	defaultCode     string
	Logger          *zap.Logger
	localizers      map[string]*i18n.Localizer
	availableLangs  map[string]string // "en" -> "English"
	matcher         language.Matcher
	matcherCodes    []string
}

// NewManager 创建一个新的 i18n 管理器, defaultLang 例如 "en"
func NewManager(defaultLang string, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaultLanguageTag, err := language.Parse(defaultLang)
	if err != nil {
		logger.Error("Failed to parse default language tag", zap.String("tag", defaultLang), zap.Error(err))
		return nil, fmt.Errorf("invalid default language tag '%s': %w", defaultLang, err)
	}

	bundle := i18n.NewBundle(defaultLanguageTag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	m := &Manager{
		bundle:          bundle,
		defaultLanguage: defaultLanguageTag,
		defaultCode:     defaultLang,
		Logger:          logger.Named("i18n"),
		localizers:      make(map[string]*i18n.Localizer),
		availableLangs:  make(map[string]string),
	}

	if err := m.LoadTranslations(); err != nil {
		return nil, err
	}
	if _, ok := m.availableLangs[defaultLang]; !ok {
		return nil, fmt.Errorf("no locale file for default language %q", defaultLang)
	}

	// default first so the matcher falls back to it
	m.matcherCodes = []string{defaultLang}
	for code := range m.availableLangs {
		if code != defaultLang {
			m.matcherCodes = append(m.matcherCodes, code)
		}
	}
	sort.Strings(m.matcherCodes[1:])
	tags := make([]language.Tag, 0, len(m.matcherCodes))
	for _, code := range m.matcherCodes {
		tags = append(tags, language.Make(code))
		m.localizers[code] = i18n.NewLocalizer(m.bundle, code)
	}
	m.matcher = language.NewMatcher(tags)

	m.Logger.Info("i18n Manager initialized",
		zap.String("default_language", defaultLang),
		zap.Int("loaded_languages", len(m.availableLangs)),
	)
	return m, nil
}

func (m *Manager) LoadTranslations() error {
	files, err := fs.ReadDir(localeFS, "locales")
	if err != nil {
		m.Logger.Error("Failed to read embedded locales root directory", zap.Error(err))
		return fmt.Errorf("failed to read embedded locales directory: %w", err)
	}

	loadedCount := 0
	for _, file := range files {
		fileName := file.Name()
		// active.en.toml, active.zh.toml
		if file.IsDir() || filepath.Ext(fileName) != ".toml" {
			m.Logger.Debug("Skipping non-matching file in locales dir", zap.String("file", fileName))
			continue
		}
		if _, err := m.bundle.LoadMessageFileFS(localeFS, "locales/"+fileName); err != nil {
			m.Logger.Warn("Failed to load translation file from embedded FS", zap.String("file", fileName), zap.Error(err))
			continue
		}
		loadedCount++

		parts := strings.Split(strings.TrimSuffix(fileName, ".toml"), ".")
		langCode := parts[len(parts)-1]
		tag, parseErr := language.Parse(langCode)
		if parseErr != nil {
			m.Logger.Warn("Failed to parse language code from filename", zap.String("file", fileName), zap.Error(parseErr))
			continue
		}
		m.availableLangs[langCode] = displayName(tag)
		m.Logger.Debug("Registered available language", zap.String("code", langCode))
	}

	if loadedCount == 0 {
		m.Logger.Error("No *.toml translation files were loaded")
		return errors.New("no valid translation files loaded")
	}
	return nil
}

func displayName(tag language.Tag) string {
	switch base, _ := tag.Base(); base.String() {
	case "en":
		return "English"
	case "zh":
		return "中文"
	default:
		return base.String()
	}
}

// Resolve picks the best available language code for a preference such as
// Telegram's "en-US" or "zh-hans". Unknown or empty input yields the default.
func (m *Manager) Resolve(pref string) string {
	if pref == "" {
		return m.defaultCode
	}
	if _, ok := m.availableLangs[pref]; ok {
		return pref
	}
	tag, err := language.Parse(pref)
	if err != nil {
		return m.defaultCode
	}
	_, index, confidence := m.matcher.Match(tag)
	if confidence == language.No {
		return m.defaultCode
	}
	return m.matcherCodes[index]
}

// T translates a message identified by key.
// args can contain:
// - An int: interpreted as PluralCount.
// - Key-value pairs (string, interface{}, ...): interpreted as TemplateData.
// - A map[string]interface{}: used as TemplateData.
func (m *Manager) T(lang string, key string, args ...interface{}) string {
	localizer, ok := m.localizers[m.Resolve(lang)]
	if !ok {
		localizer = m.localizers[m.defaultCode]
	}

	localizeConfig := &i18n.LocalizeConfig{MessageID: key}
	templateData := make(map[string]interface{})
	var pluralCount *int

	for i := 0; i < len(args); i++ {
		switch v := args[i].(type) {
		case int:
			if pluralCount == nil {
				count := v
				pluralCount = &count
			}
		case string:
			if i+1 < len(args) {
				templateData[v] = args[i+1]
				i++
			} else {
				m.Logger.Warn("Odd number of arguments for TemplateData, skipping last string key", zap.String("key", key), zap.String("lastKey", v))
			}
		case map[string]interface{}:
			for k, val := range v {
				templateData[k] = val
			}
		default:
			m.Logger.Warn("Unsupported argument type in T", zap.String("key", key), zap.String("type", fmt.Sprintf("%T", args[i])))
		}
	}

	if len(templateData) > 0 {
		localizeConfig.TemplateData = templateData
	}
	if pluralCount != nil {
		localizeConfig.PluralCount = pluralCount
	}

	localized, err := localizer.Localize(localizeConfig)
	if err != nil {
		var notFound *i18n.MessageNotFoundErr
		if !errors.As(err, &notFound) {
			m.Logger.Error("Failed to localize message",
				zap.String("key", key),
				zap.String("lang", lang),
				zap.Error(err),
			)
			return key
		}
		// 当前语言缺失时 Localize 已经回退到默认语言; 完全缺失时返回 key
		if localized == "" {
			return key
		}
	}
	return localized
}

// LanguageCodes returns the available codes, default first.
func (m *Manager) LanguageCodes() []string {
	return append([]string(nil), m.matcherCodes...)
}

func (m *Manager) GetLanguageName(code string) (string, bool) {
	name, ok := m.availableLangs[code]
	return name, ok
}

func (m *Manager) DefaultLanguage() string {
	return m.defaultCode
}
