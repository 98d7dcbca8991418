package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// GENCODE FTP URLs
const (
	gencodeBaseURL = "https://ftp.ebi.ac.uk/pub/databases/gencode/Gencode_human/release_46"
	gencodeVersion = "v46"
)

// Genome Nexus canonical transcript file URLs.
const (
	canonicalFileGRCh38 = "https://raw.githubusercontent.com/genome-nexus/genome-nexus-importer/master/data/grch38_ensembl95/export/ensembl_biomart_canonical_transcripts_per_hgnc.txt"
	canonicalFileGRCh37 = "https://raw.githubusercontent.com/genome-nexus/genome-nexus-importer/master/data/grch37_ensembl92/export/ensembl_biomart_canonical_transcripts_per_hgnc.txt"
	canonicalFileName   = "ensembl_biomart_canonical_transcripts_per_hgnc.txt"
)

// getGENCODEURLs returns the GTF and FASTA URLs for the given assembly.
func getGENCODEURLs(assembly string) (gtfURL, fastaURL string) {
	if strings.EqualFold(assembly, "GRCh37") {
		gtfURL = fmt.Sprintf("%s/GRCh37_mapping/gencode.%slift37.annotation.gtf.gz", gencodeBaseURL, gencodeVersion)
		fastaURL = fmt.Sprintf("%s/GRCh37_mapping/gencode.%slift37.pc_transcripts.fa.gz", gencodeBaseURL, gencodeVersion)
		return
	}
	gtfURL = fmt.Sprintf("%s/gencode.%s.annotation.gtf.gz", gencodeBaseURL, gencodeVersion)
	fastaURL = fmt.Sprintf("%s/gencode.%s.pc_transcripts.fa.gz", gencodeBaseURL, gencodeVersion)
	return
}

// canonicalFileURL returns the canonical transcript file URL for the given assembly.
func canonicalFileURL(assembly string) string {
	if strings.EqualFold(assembly, "GRCh37") {
		return canonicalFileGRCh37
	}
	return canonicalFileGRCh38
}

func newDownloadCmd() *cobra.Command {
	var (
		assembly string
		dataDir  string
	)

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download GENCODE coding sequence annotations",
		Long: `Download the GENCODE annotation GTF, protein-coding transcript FASTA and
Genome Nexus canonical transcript overrides used by 'vibe-perm run'.`,
		Example: `  vibe-perm download
  vibe-perm download --assembly GRCh37
  vibe-perm download --data-dir /data/vibe-perm`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := gencodeDir(dataDir, assembly)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("cannot create directory %s: %w", dir, err)
			}

			out := cmd.OutOrStdout()
			gtfURL, fastaURL := getGENCODEURLs(assembly)
			fmt.Fprintf(out, "Downloading GENCODE %s annotations for %s...\n", gencodeVersion, assembly)
			fmt.Fprintf(out, "Destination: %s\n\n", dir)

			for _, url := range []string{gtfURL, fastaURL} {
				if err := downloadFile(out, url, filepath.Join(dir, filepath.Base(url))); err != nil {
					return fmt.Errorf("downloading %s: %w", filepath.Base(url), err)
				}
			}

			// Non-fatal: runs fall back to Ensembl canonical tags.
			if err := downloadFile(out, canonicalFileURL(assembly), filepath.Join(dir, canonicalFileName)); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: could not download canonical transcript overrides: %v\n", err)
			}

			fmt.Fprintf(out, "\nDownload complete!\n")
			return nil
		},
	}

	cmd.Flags().StringVar(&assembly, "assembly", "GRCh38", "Genome assembly: GRCh37 or GRCh38")
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "Data directory (default: ~/.vibe-perm)")
	return cmd
}

// downloadFile downloads a file from URL to the destination path with progress.
func downloadFile(out io.Writer, url, destPath string) error {
	if info, err := os.Stat(destPath); err == nil {
		fmt.Fprintf(out, "  %s already exists (%s), skipping\n", filepath.Base(destPath), formatSize(info.Size()))
		return nil
	}

	fmt.Fprintf(out, "  Downloading %s...\n", filepath.Base(destPath))

	client := &http.Client{
		Timeout: 30 * time.Minute,
	}
	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP error: %s", resp.Status)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	pw := &progressWriter{out: out, total: resp.ContentLength, lastPrint: time.Now()}
	_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("download failed: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename file: %w", err)
	}

	fmt.Fprintf(out, "    Done: %s\n", formatSize(pw.downloaded))
	return nil
}

// progressWriter tracks download progress.
type progressWriter struct {
	out        io.Writer
	total      int64
	downloaded int64
	lastPrint  time.Time
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	pw.downloaded += int64(len(p))

	if time.Since(pw.lastPrint) > time.Second {
		if pw.total > 0 {
			pct := float64(pw.downloaded) / float64(pw.total) * 100
			fmt.Fprintf(pw.out, "\r    Progress: %s / %s (%.1f%%)  ",
				formatSize(pw.downloaded), formatSize(pw.total), pct)
		} else {
			fmt.Fprintf(pw.out, "\r    Progress: %s  ", formatSize(pw.downloaded))
		}
		pw.lastPrint = time.Now()
	}
	return len(p), nil
}

// formatSize formats bytes as human-readable size.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// gencodeDir returns the assembly subdirectory of the data directory.
func gencodeDir(dataDir, assembly string) (string, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".vibe-perm")
	}
	return filepath.Join(dataDir, strings.ToLower(assembly)), nil
}

// FindGENCODEFiles looks for downloaded GENCODE files. An empty dataDir
// means ~/.vibe-perm. found is false when no GTF is present.
func FindGENCODEFiles(dataDir, assembly string) (gtfPath, fastaPath, canonicalPath string, found bool) {
	dir, err := gencodeDir(dataDir, assembly)
	if err != nil {
		return "", "", "", false
	}

	gtfPattern, fastaPattern := "gencode.v*.annotation.gtf.gz", "gencode.v*.pc_transcripts.fa.gz"
	if strings.EqualFold(assembly, "GRCh37") {
		gtfPattern, fastaPattern = "gencode.v*lift37.annotation.gtf.gz", "gencode.v*lift37.pc_transcripts.fa.gz"
	}

	matches, err := filepath.Glob(filepath.Join(dir, gtfPattern))
	if err != nil || len(matches) == 0 {
		return "", "", "", false
	}
	gtfPath = matches[0]

	if matches, err := filepath.Glob(filepath.Join(dir, fastaPattern)); err == nil && len(matches) > 0 {
		fastaPath = matches[0]
	}

	if p := filepath.Join(dir, canonicalFileName); fileExists(p) {
		canonicalPath = p
	}
	return gtfPath, fastaPath, canonicalPath, true
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
