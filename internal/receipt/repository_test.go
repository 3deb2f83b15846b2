package receipt

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type fixedTime struct {
	t time.Time
}

func (f fixedTime) Now() time.Time {
	return f.t
}

func writeFile(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0644)).To(Succeed())
	return path
}

func names(files []File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

var _ = Describe("LocalRepository", func() {
	var (
		tmpDir string
		now    time.Time
		repo   *LocalRepository
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		now = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)
		var err error
		repo, err = NewLocalRepositoryWithTime(tmpDir, fixedTime{t: now})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("ListPending", func() {
		var (
			files []File
			err   error
		)

		BeforeEach(func() {
			writeFile(tmpDir, "b.JPG", "b")
			writeFile(tmpDir, "A.pdf", "a")
			writeFile(tmpDir, "c.png", "c")
			writeFile(tmpDir, "notes.txt", "ignored")
			writeFile(tmpDir, ".hidden.jpg", "ignored")
			Expect(os.MkdirAll(filepath.Join(tmpDir, FailedDir), 0755)).To(Succeed())
			writeFile(filepath.Join(tmpDir, FailedDir), "old.jpg", "ignored")
		})

		JustBeforeEach(func() {
			files, err = repo.ListPending()
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("lists supported top-level receipts in case-insensitive name order", func() {
			Expect(names(files)).To(Equal([]string{"A.pdf", "b.JPG", "c.png"}))
		})

		It("describes each file", func() {
			Expect(files[0].Format).To(Equal(FormatPDF))
			Expect(files[0].ContentType).To(Equal("application/pdf"))
			Expect(files[1].Format).To(Equal(FormatImage))
			Expect(files[1].ContentType).To(Equal("image/jpeg"))
			Expect(files[1].Path).To(Equal(filepath.Join(tmpDir, "b.JPG")))
			Expect(files[1].DiscoveredAt).To(Equal(now))
		})
	})

	Describe("Quarantine", func() {
		var (
			file File
			dest string
			err  error
		)

		BeforeEach(func() {
			file = NewFile(writeFile(tmpDir, "bad.jpg", "unreadable"), now)
		})

		JustBeforeEach(func() {
			dest, err = repo.Quarantine(file)
		})

		When("the failed folder does not exist yet", func() {
			It("creates it and moves the file", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(dest).To(Equal(filepath.Join(tmpDir, FailedDir, "bad.jpg")))
				Expect(dest).To(BeAnExistingFile())
				Expect(file.Path).NotTo(BeAnExistingFile())
			})
		})

		When("a file with the same name was quarantined before", func() {
			BeforeEach(func() {
				Expect(os.MkdirAll(filepath.Join(tmpDir, FailedDir), 0755)).To(Succeed())
				writeFile(filepath.Join(tmpDir, FailedDir), "bad.jpg", "earlier")
			})

			It("keeps both files", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(dest).To(Equal(filepath.Join(tmpDir, FailedDir, "bad_1.jpg")))
				earlier, readErr := os.ReadFile(filepath.Join(tmpDir, FailedDir, "bad.jpg"))
				Expect(readErr).NotTo(HaveOccurred())
				Expect(string(earlier)).To(Equal("earlier"))
			})
		})

		When("the source file is gone", func() {
			BeforeEach(func() {
				Expect(os.Remove(file.Path)).To(Succeed())
			})

			It("returns the error", func() {
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("quarantining bad.jpg"))
			})
		})
	})

	Describe("Archive", func() {
		var (
			file   File
			folder string
			dest   string
			err    error
		)

		BeforeEach(func() {
			folder = "June 1 09:30"
			file = NewFile(writeFile(tmpDir, "lunch.png", "receipt"), now)
		})

		JustBeforeEach(func() {
			dest, err = repo.Archive(file, folder)
		})

		It("moves the file into a filesystem-safe dated folder", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(dest).To(Equal(filepath.Join(tmpDir, "June 1 09-30", "lunch.png")))
			Expect(dest).To(BeAnExistingFile())
		})

		It("never lists an archived file as pending again", func() {
			Expect(err).NotTo(HaveOccurred())
			pending, listErr := repo.ListPending()
			Expect(listErr).NotTo(HaveOccurred())
			Expect(names(pending)).NotTo(ContainElement("lunch.png"))
		})

		When("the folder already holds a file of the same name", func() {
			BeforeEach(func() {
				Expect(os.MkdirAll(filepath.Join(tmpDir, "June 1 09-30"), 0755)).To(Succeed())
				writeFile(filepath.Join(tmpDir, "June 1 09-30"), "lunch.png", "other")
			})

			It("does not overwrite it", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(dest).To(Equal(filepath.Join(tmpDir, "June 1 09-30", "lunch_1.png")))
			})
		})

		When("the folder is the quarantine folder", func() {
			BeforeEach(func() {
				folder = FailedDir
			})

			It("returns the error and leaves the file pending", func() {
				Expect(err).To(HaveOccurred())
				Expect(file.Path).To(BeAnExistingFile())
			})
		})
	})

	Describe("NewLocalRepository", func() {
		It("creates a missing receipts directory", func() {
			path := filepath.Join(GinkgoT().TempDir(), "receipts")
			_, err := NewLocalRepository(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(path).To(BeADirectory())
		})
	})
})
