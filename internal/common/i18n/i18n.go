// Package i18n holds the en/ar strings for job step labels and API messages. Callers pass the
// locale explicitly; there is no process-wide current locale.
package i18n

import "strings"

const (
	LocaleEnglish = "en"
	LocaleArabic  = "ar"
)

// Message keys.
const (
	ExamProcessingStarted = "exam_processing_started"
	ExamProcessingFailed  = "exam_processing_failed"
	ExamNotFound          = "exam_not_found"
	InvalidExamData       = "invalid_exam_data"
	CSVFileNotFound       = "csv_file_not_found"
	CSVFileReadError      = "csv_file_read_error"
	JobNotFound           = "job_not_found"
	ValidationError       = "validation_error"
	ServerError           = "server_error"

	StepStarting               = "exam_processing_step_starting"
	StepValidatingExam         = "exam_processing_step_validating_exam"
	StepParsingAnswers         = "exam_processing_step_parsing_answers"
	StepLoadingCalculationData = "exam_processing_step_loading_calculation_data"
	StepCalculatingFit         = "exam_processing_step_calculating_compatibility"
	StepGettingRecommendations = "exam_processing_step_getting_ai_recommendations"
	StepProcessingAIResponse   = "exam_processing_step_processing_ai_response"
	StepFinalizingResults      = "exam_processing_step_finalizing_results"
)

var catalog = map[string]map[string]string{
	LocaleEnglish: {
		ExamProcessingStarted: "Exam processing started",
		ExamProcessingFailed:  "Failed to start exam processing",
		ExamNotFound:          "Exam not found",
		InvalidExamData:       "Invalid exam data",
		CSVFileNotFound:       "CSV mapping file not found",
		CSVFileReadError:      "Error reading CSV mapping file",
		JobNotFound:           "Job not found",
		ValidationError:       "Validation error",
		ServerError:           "Internal server error",

		StepStarting:               "Starting exam processing...",
		StepValidatingExam:         "Validating exam...",
		StepParsingAnswers:         "Parsing exam answers...",
		StepLoadingCalculationData: "Loading calculation data...",
		StepCalculatingFit:         "Calculating job compatibility...",
		StepGettingRecommendations: "Getting AI recommendations...",
		StepProcessingAIResponse:   "Processing AI response...",
		StepFinalizingResults:      "Finalizing results...",
	},
	LocaleArabic: {
		ExamProcessingStarted: "بدأت معالجة الامتحان",
		ExamProcessingFailed:  "فشل بدء معالجة الامتحان",
		ExamNotFound:          "الامتحان غير موجود",
		InvalidExamData:       "بيانات الامتحان غير صالحة",
		CSVFileNotFound:       "ملف CSV للخريطة غير موجود",
		CSVFileReadError:      "خطأ في قراءة ملف CSV للخريطة",
		JobNotFound:           "المهمة غير موجودة",
		ValidationError:       "خطأ في التحقق",
		ServerError:           "خطأ داخلي في الخادم",

		StepStarting:               "جارٍ بدء معالجة الامتحان...",
		StepValidatingExam:         "جارٍ التحقق من الامتحان...",
		StepParsingAnswers:         "جارٍ تحليل إجابات الامتحان...",
		StepLoadingCalculationData: "جارٍ تحميل بيانات الحساب...",
		StepCalculatingFit:         "جارٍ حساب التوافق الوظيفي...",
		StepGettingRecommendations: "جارٍ الحصول على توصيات الذكاء الاصطناعي...",
		StepProcessingAIResponse:   "جارٍ معالجة استجابة الذكاء الاصطناعي...",
		StepFinalizingResults:      "جارٍ إنهاء النتائج...",
	},
}

// IsSupported reports whether locale has a catalog.
func IsSupported(locale string) bool {
	_, ok := catalog[locale]
	return ok
}

// Normalize reduces a header value such as "ar-SA,ar;q=0.9" to a supported locale, or "".
func Normalize(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	first := strings.SplitN(value, ",", 2)[0]
	first = strings.SplitN(first, ";", 2)[0]
	first = strings.ToLower(strings.TrimSpace(first))
	first = strings.SplitN(strings.ReplaceAll(first, "_", "-"), "-", 2)[0]
	if IsSupported(first) {
		return first
	}
	return ""
}

// T returns the string for key in locale, falling back to English and then to the key itself.
func T(locale, key string) string {
	if msgs, ok := catalog[locale]; ok {
		if s, ok := msgs[key]; ok {
			return s
		}
	}
	if s, ok := catalog[LocaleEnglish][key]; ok {
		return s
	}
	return key
}
