// Утилита калибровки голоса с микрофона.
// Записывает образцы и отправляет их на бэкенд прокторинга.
// Запуск: go run ./cmd/calibrate -session my-session
package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"hrproctor/audio"
)

const sampleRate = 16000

func main() {
	server := flag.String("server", "http://localhost:8080", "Backend address")
	sessionID := flag.String("session", "", "Proctoring session ID")
	device := flag.String("device", "", "Microphone device ID (empty = default)")
	samples := flag.Int("samples", 5, "Number of calibration samples")
	duration := flag.Float64("duration", 3.0, "Seconds per sample")
	verify := flag.Bool("verify", true, "Record a probe after calibration and verify it")
	listDevices := flag.Bool("list", false, "List capture devices and exit")
	flag.Parse()

	capture, err := audio.NewCapture(sampleRate)
	if err != nil {
		log.Fatalf("Ошибка инициализации захвата: %v", err)
	}
	defer capture.Close()

	if *listDevices {
		devices, err := capture.ListDevices()
		if err != nil {
			log.Fatalf("Ошибка перечисления устройств: %v", err)
		}
		for _, d := range devices {
			fmt.Printf("%s\t%s\n", d.ID, d.Name)
		}
		return
	}

	if *sessionID == "" {
		log.Fatal("Укажите -session")
	}
	if err := capture.SetDevice(*device); err != nil {
		log.Fatalf("Ошибка выбора устройства: %v", err)
	}

	base := *server + "/api/sessions/" + *sessionID

	// Прогрев движка транскрипции перед калибровкой
	if _, err := postJSON(*server + "/api/initialize"); err != nil {
		log.Fatalf("Ошибка инициализации системы: %v", err)
	}

	start, err := postJSON(base + "/calibration/start")
	if err != nil {
		log.Fatalf("Ошибка начала калибровки: %v", err)
	}
	log.Printf("Калибровка начата: %s", start)

	if err := capture.Start(); err != nil {
		log.Fatalf("Ошибка запуска записи: %v", err)
	}
	defer capture.Stop()

	for i := 1; i <= *samples; i++ {
		log.Printf("Образец %d/%d: говорите %.1f сек...", i, *samples, *duration)
		capture.ClearBuffers()
		pcm := record(capture, *duration)

		wav := encodeWAV(pcm)
		resp, err := http.Post(base+"/calibration/sample", "audio/wav", bytes.NewReader(wav))
		if err != nil {
			log.Fatalf("Ошибка отправки образца: %v", err)
		}
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			log.Printf("Образец отклонён (%d): %s", resp.StatusCode, body)
			i--
			continue
		}
		log.Printf("Образец принят: %s", body)
	}

	summary, err := postJSON(base + "/calibration/finish")
	if err != nil {
		log.Fatalf("Ошибка завершения калибровки: %v", err)
	}
	log.Printf("Калибровка завершена: %s", summary)

	if !*verify {
		return
	}

	log.Printf("Проверочная запись: говорите %.1f сек...", *duration)
	capture.ClearBuffers()
	pcm := record(capture, *duration)

	resp, err := http.Post(base+"/analyze", "audio/wav", bytes.NewReader(encodeWAV(pcm)))
	if err != nil {
		log.Fatalf("Ошибка проверки: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("Проверка отклонена (%d): %s", resp.StatusCode, body)
	}
	log.Printf("Результат проверки: %s", body)
}

// record собирает образец заданной длительности из канала захвата
func record(capture *audio.Capture, seconds float64) []float32 {
	want := int(float64(sampleRate) * seconds)
	pcm := make([]float32, 0, want)
	deadline := time.After(time.Duration(seconds*1000+2000) * time.Millisecond)

	for len(pcm) < want {
		select {
		case chunk := <-capture.Data():
			pcm = append(pcm, chunk...)
		case <-deadline:
			return pcm
		}
	}
	return pcm[:want]
}

func postJSON(url string) (string, error) {
	resp, err := http.Post(url, "application/json", nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, body); err != nil {
		return string(body), nil
	}
	return compact.String(), nil
}

// encodeWAV упаковывает float32 PCM в моно WAV 16 бит
func encodeWAV(samples []float32) []byte {
	dataSize := len(samples) * 2
	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(1)) // mono
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2))
	binary.Write(buf, binary.LittleEndian, uint16(2))
	binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataSize))

	for _, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.Write(buf, binary.LittleEndian, int16(s*32767))
	}
	return buf.Bytes()
}
